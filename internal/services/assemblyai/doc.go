// Package assemblyai adapts the AssemblyAI speech-to-text SDK to the pipeline's
// Transcriber contract: upload a media stream, wait for the transcript, and
// return its text or a classified error.
package assemblyai
