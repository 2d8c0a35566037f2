// Package main provides the entry point for the cloudlab CLI.
//
// cloudlab forwards text, images and audio to one cloud AI API per page
// and renders the reply: object detection, translation, speech-to-text,
// summarization, text-to-speech and image generation.
//
// Usage:
//
//	cloudlab detect photo.jpg
//	cloudlab translate --to ja "Good morning"
//	cloudlab summarize --url https://example.com/article
//	cloudlab serve --addr 127.0.0.1:8080
//
// See --help for all available options.
package main

// main is the entry point for cloudlab.
func main() {
	Execute()
}
