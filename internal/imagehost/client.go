// Package imagehost предоставляет клиент для загрузки изображений товаров в Cloudinary.
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// DefaultBaseURL указывает на публичный API загрузки Cloudinary.
const DefaultBaseURL = "https://api.cloudinary.com"

// ErrNotConfigured возвращается, если клиент создан без учётных данных.
var ErrNotConfigured = errors.New("image host not configured")

// Client загружает изображения через Cloudinary SDK.
type Client struct {
	cld *cloudinary.Cloudinary
}

// NewClient создаёт клиент для указанного облака Cloudinary.
// Пустой baseURL оставляет адрес API по умолчанию.
func NewClient(baseURL, cloudName, apiKey, apiSecret string) (*Client, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	if baseURL != "" {
		cfg.API.UploadPrefix = strings.TrimRight(baseURL, "/")
	}

	cld, err := cloudinary.NewFromConfiguration(*cfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}

	return &Client{cld: cld}, nil
}

// Upload загружает изображение подписанным запросом и возвращает его HTTPS-адрес.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if c == nil || c.cld == nil {
		return "", ErrNotConfigured
	}

	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		ResourceType:     "image",
		FilenameOverride: path.Base(filename),
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload rejected: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("upload response without secure_url")
	}

	return res.SecureURL, nil
}
