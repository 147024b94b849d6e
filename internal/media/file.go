package media

import "fmt"

// MaxImageBytes is the largest image accepted for upload (8 MiB).
const MaxImageBytes int64 = 8 * 1024 * 1024

// MaxKeyLength bounds a key stored in a database column.
const MaxKeyLength = 300

// MaxGalleryImages caps the upload queue of one gallery. Saved keys are not
// counted.
const MaxGalleryImages = 12

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// AllowedContentTypes lists the accepted image MIME types.
func AllowedContentTypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// FileDescriptor is what a client declares about a file before uploading it.
type FileDescriptor struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Validate checks the declared type and size. It returns a *ValidationError
// naming the file and the violated constraint.
func (f FileDescriptor) Validate() error {
	if f.Filename == "" {
		return &ValidationError{Constraint: ConstraintFilename, Message: "file name is required"}
	}
	if _, ok := allowedContentTypes[f.ContentType]; !ok {
		return &ValidationError{
			File:       f.Filename,
			Constraint: ConstraintContentType,
			Message:    "only JPEG, PNG, and WebP images are allowed",
		}
	}
	if f.Size <= 0 {
		return &ValidationError{File: f.Filename, Constraint: ConstraintSize, Message: "file is empty"}
	}
	if f.Size > MaxImageBytes {
		return &ValidationError{
			File:       f.Filename,
			Constraint: ConstraintSize,
			Message:    fmt.Sprintf("file exceeds the %d MB limit", MaxImageBytes/(1024*1024)),
		}
	}
	return nil
}

// ValidateAll validates every descriptor and aggregates the failures.
// It returns nil when all descriptors are acceptable.
func ValidateAll(files []FileDescriptor) error {
	var errs ValidationErrors
	for _, f := range files {
		if err := f.Validate(); err != nil {
			errs = append(errs, err.(*ValidationError))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
