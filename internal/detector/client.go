// Package detector talks to the face detection and embedding service.
package detector

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

const (
	defaultURL         = "http://localhost:8000"
	defaultMinFaceSize = 10
	faceEndpoint       = "/embed/face"
)

// Client detects faces and computes their embeddings using the embedding server
type Client struct {
	baseURL     string
	minFaceSize float64
	client      *http.Client
}

// NewClient creates a new detector client. A zero timeout disables the
// client-side deadline; requests still honour their context.
func NewClient(baseURL string, timeout time.Duration, minFaceSize int) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if minFaceSize < 0 {
		minFaceSize = defaultMinFaceSize
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		minFaceSize: float64(minFaceSize),
		client:      &http.Client{Timeout: timeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
// The part carries an explicit Content-Type header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ComputeFaceEmbeddings returns the raw service response for an image.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, faceEndpoint, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Detect returns the faces in an image, largest first. Faces whose box is
// not wider and taller than the minimum face size are dropped, as are faces
// without an embedding. No faces is an empty slice, not an error.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]facematch.Detection, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}

	dets := make([]facematch.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 || len(f.Embedding) == 0 {
			continue
		}
		bbox := facematch.BBox{f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]}
		if bbox.Width() <= c.minFaceSize || bbox.Height() <= c.minFaceSize {
			continue
		}
		dets = append(dets, facematch.Detection{
			BBox:      bbox,
			Embedding: f.Embedding,
			Score:     f.DetScore,
		})
	}

	SortByArea(dets)
	return dets, nil
}

// SortByArea orders detections by descending box area, keeping the service
// order for equal areas.
func SortByArea(dets []facematch.Detection) {
	slices.SortStableFunc(dets, func(a, b facematch.Detection) int {
		return cmp.Compare(b.BBox.Area(), a.BBox.Area())
	})
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
