// Package config defines the configuration of a nativecoll engine.
//
// Configuration is loaded from YAML. ${VAR} references are replaced with
// environment values before parsing:
//
//	memory:
//	  initial_pages: 1
//	  max_pages: ${NATIVECOLL_MAX_PAGES}
//	pool:
//	  min_block_size: 8192
//	log:
//	  level: debug
//	metrics:
//	  enabled: true
//	  namespace: nativecoll
//
// Fields left out keep the values of Default.
package config
