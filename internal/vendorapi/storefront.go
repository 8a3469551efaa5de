package vendorapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// StorefrontInfo is the subset of the storefront record the bot acts
// on, plus the raw payload for the model.
type StorefrontInfo struct {
	Exists    bool
	StoreLink string
	Raw       map[string]any
}

// GetStorefrontInfo fetches the public storefront record for a store.
func (c *Client) GetStorefrontInfo(ctx context.Context, token, storeID string) (*StorefrontInfo, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, "/apiv2/storefront/get_info/"+storeID+"/", token, nil, &raw); err != nil {
		return nil, err
	}

	info := &StorefrontInfo{Raw: raw}
	if exists, ok := raw["is_storefront_exists"].(bool); ok {
		info.Exists = exists
	}
	if link, ok := raw["store_link"].(string); ok {
		info.StoreLink = link
	}
	return info, nil
}

// GetStorefrontDetails fetches the detailed storefront info record.
// This is a different backend route from GetStorefrontInfo.
func (c *Client) GetStorefrontDetails(ctx context.Context, token, storeID string) (map[string]any, error) {
	var result map[string]any
	if err := c.getJSON(ctx, "/ocr/storefront/get_info/"+storeID, token, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStorefrontInfo updates storefront fields (name, address,
// contact details, flags). payload holds only the keys to change.
func (c *Client) UpdateStorefrontInfo(ctx context.Context, token, storeID string, payload map[string]any) (map[string]any, error) {
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPut, "/apiv2/storefront/info/"+storeID+"/", token, payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// StoryDetails holds the vendor's story answers used to generate the
// storefront profile.
type StoryDetails struct {
	ProcessSpeciality string `json:"process_speciality"`
	TimeForOneProduct string `json:"time_for_one_product"`
	Challenges        string `json:"challenges"`
}

// GenerateStoreProfile asks the backend to generate the storefront
// profile text from the vendor's story.
func (c *Client) GenerateStoreProfile(ctx context.Context, token, storeID, storeName string, details StoryDetails) (map[string]any, error) {
	var result map[string]any
	err := c.doJSON(ctx, http.MethodPost, "/bot/generate_store_profile/", token, map[string]any{
		"store_id":   storeID,
		"store_name": storeName,
		"details":    details,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UploadStoreImages downloads the given image URLs and attaches them
// to the storefront's about section. imageType is "about" or
// "what_we_do".
func (c *Client) UploadStoreImages(ctx context.Context, token, storeID, imageType string, imageURLs []string) (map[string]any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("store_id", storeID); err != nil {
		return nil, fmt.Errorf("write store_id field: %w", err)
	}
	if err := w.WriteField("type", imageType); err != nil {
		return nil, fmt.Errorf("write type field: %w", err)
	}

	for i, imgURL := range imageURLs {
		data, err := c.fetchImage(ctx, imgURL)
		if err != nil {
			c.logger.Warn("store image fetch failed",
				"url", imgURL,
				"error", err,
			)
			continue
		}
		part, err := w.CreateFormFile("file", fmt.Sprintf("image_%d.jpg", i))
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
	if err := c.doMultipart(ctx, http.MethodPut, "/apiv2/about_images/", token, &buf, w.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// StorefrontLink builds the public storefront URL from the backend's
// store_link slug.
func (c *Client) StorefrontLink(storeLink string) string {
	return fmt.Sprintf("https://%s/%s/", c.storefrontHost, storeLink)
}

// ProductEditLink builds the one-click product edit link.
func (c *Client) ProductEditLink(phone string, productID string) string {
	params := url.Values{
		"phone":     {phone},
		"productId": {productID},
	}
	return fmt.Sprintf("https://%s/edit/product?%s", c.storefrontHost, params.Encode())
}

// StoreEditLink builds the one-click store edit link.
func (c *Client) StoreEditLink(phone string) string {
	params := url.Values{"phone": {phone}}
	return fmt.Sprintf("https://%s/edit/store?%s", c.storefrontHost, params.Encode())
}
