// Package config loads Alchemy's startup configuration.
//
// # Overview
//
// Configuration comes from two layers. A TOML file provides the baseline and
// environment variables override it, so the same binary works from a config
// file on a workstation and from a .env file during development.
//
// # Resolution Order
//
//  1. If a path is explicitly provided, read it
//  2. Otherwise read ~/.config/alchemy/config.toml
//  3. A missing file means every field starts empty
//  4. Environment variables (optionally loaded from .env/.env.local) override
//  5. Remaining empty fields take their defaults
//
// # TOML Format
//
//	[backend]
//	url = "https://project.supabase.co"
//	anon_key = "public-anon-key"
//
//	[session]
//	bootstrap_timeout = "5s"
//	storage = "keyring"   # keyring, file or memory
//	file = "~/.local/state/alchemy/session.toml"
//
//	[carousel]
//	swipe_threshold = 50  # pixels
//	pixels_per_cell = 8
//
//	[logging]
//	level = "info"
//	format = "console"    # console or json
//	file = "~/.local/state/alchemy/alchemy.log"
//
// # Environment
//
//   - SUPABASE_URL / VITE_SUPABASE_URL
//   - SUPABASE_ANON_KEY / VITE_SUPABASE_ANON_KEY
//   - ALCHEMY_BOOTSTRAP_TIMEOUT, ALCHEMY_SESSION_STORAGE,
//     ALCHEMY_SWIPE_THRESHOLD, ALCHEMY_LOG_FILE
//   - LOG_LEVEL, LOG_FORMAT
//
// # Offline Mode
//
// Missing backend values are NOT an error. BackendConfigured reports false
// and the rest of the application runs with auth disabled and the bundled
// question list.
package config
