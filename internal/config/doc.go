// Package config provides configuration parsing for the tracestream daemon.
//
// The configuration is stored in tracestream.json. Every field is optional;
// missing values take the protocol defaults.
//
// # Configuration File Structure
//
//	{
//	  "streamer": {
//	    "portStart": 63783,
//	    "portAttempts": 10,
//	    "backlog": 10,
//	    "pollInterval": "1ms",
//	    "maxReadsPerPoll": 32,
//	    "writeTimeout": "5s"
//	  },
//	  "status": {
//	    "addr": "127.0.0.1:9464"
//	  },
//	  "emulator": {
//	    "rom": "./roms/smb3.nes",
//	    "region": "ntsc",
//	    "tick": "10ms"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//	srv := server.New(host, bus, cfg.ServerConfig(logger))
package config
