package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

func writerChannel(name, channelType string, vars ...string) ChannelEntity {
	ch := ChannelEntity{
		Subject:     rdf.IRI(ex + name),
		ChannelType: rdf.IRI(ex + channelType),
		Role:        RoleWriter,
	}
	for i := 0; i+1 < len(vars); i += 2 {
		key := vars[i]
		value := rdf.Literal(vars[i+1])
		ch.Records = append(ch.Records, ChannelRecord{Subject: ch.Subject, ChannelType: ch.ChannelType, Key: &key, Value: &value})
	}
	return ch
}

func TestChannelProvisioner_UploadsOncePerType(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		plane := newFakePlane()
		templates := staticTemplates{ex + "WsWriterChannel": "ws-writer"}
		p := NewChannelProvisioner(plane, NewCorrelationStore(nil), templates, "root", zerolog.Nop())

		for i := 0; i < n; i++ {
			ch := writerChannel("socket"+string(rune('a'+i)), "WsWriterChannel", "url", "ws://x")
			port, err := p.Provision(context.Background(), ch)
			if err != nil {
				t.Fatalf("n=%d: Provision failed: %v", n, err)
			}
			if port.Kind != KindInputPort {
				t.Errorf("n=%d: expected input port for writer channel, got %s", n, port.Kind)
			}
		}

		deleted, errs := p.Cleanup(context.Background())
		if len(errs) != 0 {
			t.Fatalf("n=%d: Cleanup errors: %v", n, errs)
		}

		if got := plane.count("upload-template"); got != 1 {
			t.Errorf("n=%d: expected 1 upload, got %d", n, got)
		}
		if got := plane.count("delete-template"); got != 1 || deleted != 1 {
			t.Errorf("n=%d: expected 1 delete, got %d (reported %d)", n, got, deleted)
		}
		if got := plane.count("instantiate-template"); got != n {
			t.Errorf("n=%d: expected %d instantiations, got %d", n, n, got)
		}
		if len(p.Groups()) != n {
			t.Errorf("n=%d: expected %d groups for activation, got %d", n, n, len(p.Groups()))
		}
		if p.Uploaded() != 1 {
			t.Errorf("n=%d: expected upload count 1, got %d", n, p.Uploaded())
		}
	}
}

func TestChannelProvisioner_CorrelatesPortAndBindsVariables(t *testing.T) {
	plane := newFakePlane()
	correlations := NewCorrelationStore(nil)
	p := NewChannelProvisioner(plane, correlations, staticTemplates{ex + "WsWriterChannel": "ws"}, "root", zerolog.Nop())

	ch := writerChannel("socketOut", "WsWriterChannel", "url", "ws://localhost:8123/data")
	port, err := p.Provision(context.Background(), ch)
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	entry, ok := correlations.Lookup(ch.Subject)
	if !ok {
		t.Fatal("expected channel to be correlated")
	}
	if entry.RemoteID != port.ID || entry.GroupID != "group-1" || entry.Kind != KindInputPort {
		t.Errorf("unexpected correlation %+v", entry)
	}

	vars := plane.variables["group-1"]
	if len(vars) != 1 || vars[0].Name != "url" || vars[0].Value != "ws://localhost:8123/data" {
		t.Errorf("expected url variable, got %v", vars)
	}
}

func TestChannelProvisioner_WriteBackFailureKeepsChannel(t *testing.T) {
	plane := newFakePlane()
	correlations := NewCorrelationStore(&memGraph{failWith: errors.New("disk full")})
	p := NewChannelProvisioner(plane, correlations, staticTemplates{ex + "WsWriterChannel": "ws"}, "root", zerolog.Nop())

	ch := writerChannel("socketOut", "WsWriterChannel", "url", "ws://localhost:8123/data")
	port, err := p.Provision(context.Background(), ch)
	if port == nil {
		t.Fatalf("expected the port despite the write-back failure, got %v", err)
	}
	if err == nil {
		t.Error("expected the write-back failure to be reported")
	}

	if _, ok := correlations.Lookup(ch.Subject); !ok {
		t.Error("expected the channel to stay correlated")
	}
	if got := plane.count("set-variables group-1"); got != 1 {
		t.Errorf("expected variables to be bound once, got %d", got)
	}
	if groups := p.Groups(); len(groups) != 1 || groups[0] != "group-1" {
		t.Errorf("expected group-1 for activation, got %v", groups)
	}
}

func TestChannelProvisioner_Failures(t *testing.T) {
	t.Run("template not configured", func(t *testing.T) {
		plane := newFakePlane()
		p := NewChannelProvisioner(plane, NewCorrelationStore(nil), staticTemplates{}, "root", zerolog.Nop())

		for i := 0; i < 2; i++ {
			_, err := p.Provision(context.Background(), writerChannel("s", "Unknown"))
			if !errors.Is(err, ErrTemplateNotConfigured) {
				t.Fatalf("expected template not configured, got %v", err)
			}
		}
		if plane.count("instantiate-template") != 0 {
			t.Error("expected no instantiation without a template")
		}
	})

	t.Run("nil loader", func(t *testing.T) {
		p := NewChannelProvisioner(newFakePlane(), NewCorrelationStore(nil), nil, "root", zerolog.Nop())
		_, err := p.Provision(context.Background(), writerChannel("s", "WsWriterChannel"))
		if !errors.Is(err, ErrTemplateNotConfigured) {
			t.Fatalf("expected template not configured, got %v", err)
		}
	})

	t.Run("no port", func(t *testing.T) {
		plane := newFakePlane()
		plane.noPorts = true
		correlations := NewCorrelationStore(nil)
		p := NewChannelProvisioner(plane, correlations, staticTemplates{ex + "WsWriterChannel": "ws"}, "root", zerolog.Nop())

		port, err := p.Provision(context.Background(), writerChannel("s", "WsWriterChannel"))
		if port != nil || !errors.Is(err, ErrPortNotFound) {
			t.Fatalf("expected port not found, got %v, %v", port, err)
		}
		if correlations.Len() != 0 {
			t.Error("expected no correlation without a port")
		}
		if len(p.Groups()) != 0 {
			t.Error("expected group without port to be left out of activation")
		}
	})
}

func TestFileTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ws-writer.xml")
	if err := os.WriteFile(path, []byte("<template/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	templates := FileTemplates{
		ex + "WsWriterChannel": {Path: path, Role: RoleWriter},
		ex + "Missing":         {Path: filepath.Join(dir, "missing.xml")},
	}

	name, content, err := templates.LoadTemplate(ex+"WsWriterChannel", RoleWriter)
	if err != nil {
		t.Fatalf("LoadTemplate failed: %v", err)
	}
	if name != "WsWriterChannel" || string(content) != "<template/>" {
		t.Errorf("unexpected template %q %q", name, content)
	}

	if _, _, err := templates.LoadTemplate(ex+"WsWriterChannel", RoleReader); err == nil {
		t.Error("expected role mismatch to fail")
	}
	if _, _, err := templates.LoadTemplate(ex+"Other", RoleWriter); !errors.Is(err, ErrTemplateNotConfigured) {
		t.Errorf("expected template not configured, got %v", err)
	}
	if _, _, err := templates.LoadTemplate(ex+"Missing", RoleWriter); err == nil {
		t.Error("expected unreadable template to fail")
	}
}
