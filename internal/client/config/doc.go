// Package config loads runtime configuration for the tubeaccounts client.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Flags
//
//	-a string   address:port of the account server
//	-s string   path of the local session database
//	-i int      server status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_db_path": "session.db",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s"
//	}
package config
