// Package media matches library images to pages by tag. It only reads the
// media library; uploads and tagging happen elsewhere.
package media
