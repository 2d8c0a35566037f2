// Package config provides the configuration for cloudlab.
//
// Every page (image generation, object detection, translation,
// speech-to-text, summarization, text-to-speech) receives its own
// PageConfig value holding endpoint, credential and timeout. Nothing reads
// credentials from process-wide state after startup: the CLI builds one
// Config from defaults, the YAML file, environment variables and flags,
// then hands each page the PageConfig it needs.
package config
