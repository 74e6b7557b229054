// Package embedding talks to the face embedding server.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	faceEndpoint        = "/embed/face"
	requestTimeout      = 2 * time.Minute
	// cap on the error body quoted back to callers
	maxErrorBody = 4 << 10
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

// Provider turns an image into a face embedding. Implementations return
// cluster.ErrNoFaceDetected when the image holds no usable face.
type Provider interface {
	Embed(ctx context.Context, imageData []byte) (cluster.Embedding, error)
}

// Client is a Provider backed by the HTTP embedding server.
type Client struct {
	baseURL      string
	maxImageSize int
	http         *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient points a Client at baseURL. Photos larger than maxImageSize on
// either side are downscaled before upload; zero means the default.
func NewClient(baseURL string, maxImageSize int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if maxImageSize <= 0 {
		maxImageSize = constants.MaxImageSize
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		maxImageSize: maxImageSize,
		http:         &http.Client{Timeout: requestTimeout},
	}
}

// FaceDetection is one face found by the server.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // x1, y1, x2, y2
	DetScore  float64   `json:"det_score"`
}

// FaceResponse is the body of a successful /embed/face call.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// imageForm wraps the image as the "file" field of a multipart body.
func imageForm(data []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	header.Set("Content-Type", detectMIMEType(data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// DetectFaces uploads the image and returns every face the server found.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	data, err := ResizeImage(imageData, c.maxImageSize)
	if err != nil {
		return nil, err
	}
	body, contentType, err := imageForm(data)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+faceEndpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var faces FaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&faces); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	return &faces, nil
}

// Embed returns the embedding of the first detected face.
func (c *Client) Embed(ctx context.Context, imageData []byte) (cluster.Embedding, error) {
	resp, err := c.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, err
	}
	for _, face := range resp.Faces {
		if len(face.Embedding) > 0 {
			return cluster.Embedding(face.Embedding), nil
		}
	}
	return nil, cluster.ErrNoFaceDetected
}

func detectMIMEType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	}
	return "application/octet-stream"
}
