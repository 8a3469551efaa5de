package vendorapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/vendora-ai/vendora/internal/httpkit"
)

// maxImageBytes bounds a single downloaded source image.
const maxImageBytes = 10 << 20 // 10 MiB

// DescriptionRequest carries the product attributes the backend uses
// to generate a marketing description.
type DescriptionRequest struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	MRP         float64 `json:"mrp"`
	Application string  `json:"application"`
	Material    string  `json:"material"`
}

// UploadProductImages downloads the given image URLs and uploads them
// as a new product under storeID. The response includes the backend's
// assigned product_id.
func (c *Client) UploadProductImages(ctx context.Context, token, storeID string, imageURLs []string) (map[string]any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("store_id", storeID); err != nil {
		return nil, fmt.Errorf("write store_id field: %w", err)
	}

	for i, imgURL := range imageURLs {
		data, err := c.fetchImage(ctx, imgURL)
		if err != nil {
			c.logger.Warn("product image fetch failed",
				"url", imgURL,
				"error", err,
			)
			continue
		}
		part, err := w.CreateFormFile("images", fmt.Sprintf("image_%d.jpg", i))
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("write form file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var result map[string]any
	if err := c.doMultipart(ctx, http.MethodPost, "/bot/upload_image/", token, &buf, w.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateDescription asks the backend to generate the product
// description from the given attributes.
func (c *Client) GenerateDescription(ctx context.Context, token string, req DescriptionRequest) (map[string]any, error) {
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/bot/generate_description/", token, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAllProducts lists all products of a store.
func (c *Client) GetAllProducts(ctx context.Context, token, storeID string) (any, error) {
	var result any
	q := url.Values{"store_id": {storeID}}
	if err := c.getJSON(ctx, "/ocr/get_all_products/", token, q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetProduct fetches one product by id.
func (c *Client) GetProduct(ctx context.Context, token, productID string) (map[string]any, error) {
	var result map[string]any
	if err := c.getJSON(ctx, "/ocr/store/product/"+productID, token, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateProduct updates the given editable fields of a product. fields
// holds only the keys to change.
func (c *Client) UpdateProduct(ctx context.Context, token, productID string, fields map[string]any) (map[string]any, error) {
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPut, "/ocr/store/product/"+productID+"/", token, fields, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// fetchImage downloads a source image, typically from the Telegram
// file server.
func (c *Client) fetchImage(ctx context.Context, imgURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
