// Package config loads runtime configuration files.
//
// Files are YAML or TOML, chosen by extension:
//
//	# mhrun.yaml
//	customize:
//	  threshold: 64
//	lowering:
//	  backend: wasm
//	  eager_arity_limit: 8
//	archive:
//	  path: invokers.cbor
//	  load: true
//	  save: true
//	log:
//	  level: debug
//	prewarm:
//	  - descriptor: (II)I
//	    kind: exact
//
// Missing fields keep their defaults; unknown fields are errors.
package config
