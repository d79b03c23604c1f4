package recognition

import "errors"

// ErrNoFaceDetected is returned by Enroll when none of the images contain a
// face.
var ErrNoFaceDetected = errors.New("no face detected")
