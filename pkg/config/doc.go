// Package config loads the nifictl configuration file.
//
// A configuration is one CUE (.cue) or YAML (.yaml, .yml) file. Its content is
// unified with the built-in #Config schema, which constrains field shapes and
// supplies defaults, then decoded into Config. Unknown fields are rejected.
//
// Required fields are checked by Validate with validator struct tags, after
// command line overrides have been applied, so a file may leave the engine
// URL or root group to the command line.
//
// # Usage Example
//
//	loader := config.NewLoader()
//	cfg, err := loader.Load("nifictl.cue")
//	if err != nil {
//	    return err
//	}
//	cfg.Apply(config.Overrides{NiFiURL: flagURL})
//	if err := loader.Validate(cfg); err != nil {
//	    return err
//	}
//	orch, err := engine.NewOrchestrator(store, client, cfg.Options(), logger)
//
// A minimal file:
//
//	nifi: {
//	    url:        "http://localhost:8080/nifi-api"
//	    root_group: "5f1c0a42-0187-1000-ffff-ffffd6a2b1e0"
//	}
//	channels: [{
//	    type:      "https://w3id.org/conn#WsWriterChannel"
//	    template:  "templates/ws-writer.xml"
//	    direction: "writer"
//	}]
//	links: missing_key: "fail"
package config
