// Package config provides configuration loading for the statesync CLI.
//
// The configuration is stored in statesync.json in the working directory.
// Every field can be overridden with a STATESYNC_* environment variable,
// optionally read from a .env file first.
//
// # Configuration File Structure
//
//	{
//	  "storage": {
//	    "backend": "sqlite",
//	    "sqlitePath": "statesync.db",
//	    "redisAddr": "localhost:6379",
//	    "redisTTL": "24h",
//	    "s3Bucket": "my-bucket"
//	  },
//	  "cookie": {
//	    "path": "/",
//	    "sameSite": "Lax",
//	    "maxAge": "720h"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Environment
//
//	STATESYNC_STORAGE_BACKEND=redis
//	STATESYNC_STORAGE_REDIS_ADDR=cache:6379
//	STATESYNC_COOKIE_SAME_SITE=Strict
//	STATESYNC_LOG_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Resolve(".", ".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Backend:", cfg.Storage.Backend)
package config
