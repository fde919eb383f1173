// Package services holds the error taxonomy shared by pipeline stages and
// the external collaborators (media tools, transcription, translation,
// speech synthesis) that report through it.
package services
