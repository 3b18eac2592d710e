// Package config loads the artifacts bootpack repackages.
//
//	            +-------------+
//	            |   Config    |
//	            | (artifacts) |
//	            +------+------+
//	                   |
//	      +------------+------------+
//	      |            |            |
//	+-----+----+ +-----+----+ +-----+----+
//	|   YAML   | |   HCL    | |   JSON   |
//	|  Parser  | |  Parser  | |  Parser  |
//	+----------+ +----------+ +----------+
//
// 🎯 Purpose:
// - Parses a config file into one or more artifacts
// - Validates layouts, scopes and required paths
// - Fills in defaults (backup_source and all_in_one are on)
// - Converts an artifact into repackage.Options
//
// 🔄 Flow:
// 1. Reads the file and picks a parser by extension
// 2. A bare .bootpack file is tried as YAML, then HCL
// 3. Validates and defaults every artifact
// 4. Resolves relative paths against the config file's directory
//
// 🔍 Example:
//
//	artifacts:
//	  - source: target/app.jar
//	    main_class: com.example.App
//	    all_in_one: false
//	    libraries:
//	      - path: deps/a.jar
//	      - path: deps/b.jar
//	        unpack: true
//	    library_globs:
//	      - patterns: ["deps/runtime/**/*.jar"]
//	        scope: runtime
//
// The same artifact in HCL:
//
//	artifact "app" {
//	  source     = "target/app.jar"
//	  main_class = "com.example.App"
//	  all_in_one = false
//	  version    = env("BOOT_VERSION")
//
//	  library {
//	    path = "deps/a.jar"
//	  }
//	}
package config
