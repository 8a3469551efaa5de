package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/skip2/go-qrcode"

	"github.com/vendora-ai/vendora/internal/vendorapi"
)

type authVendorArgs struct {
	PhoneNo string `json:"phone_no" jsonschema_description:"Vendor phone number"`
}

type createStoreArgs struct {
	Categories []Category `json:"categories" jsonschema_description:"Business categories the store sells in"`
	Token      string     `json:"token" jsonschema_description:"Bearer token for authentication"`
}

type createProductArgs struct {
	ImageURLs   []string `json:"image_urls" jsonschema:"maxItems=2" jsonschema_description:"Image URLs (e.g., from Telegram) to be uploaded"`
	StoreID     string   `json:"store_id" jsonschema_description:"The store ID to associate the images with"`
	ProductName string   `json:"product_name" jsonschema_description:"Name of the product"`
	MRP         float64  `json:"MRP" jsonschema_description:"Maximum retail price of the product"`
	Application string   `json:"application" jsonschema_description:"Intended application or use of the product"`
	Material    string   `json:"material" jsonschema_description:"Material composition of the product"`
	AuthToken   string   `json:"auth_token" jsonschema_description:"Bearer token for authentication"`
}

type generateAIImageArgs struct {
	ProductID   string `json:"product_id" jsonschema_description:"The unique ID of the product to generate images for"`
	StoreID     string `json:"store_id" jsonschema_description:"The store ID that the product belongs to"`
	ImageURL    string `json:"image_url" jsonschema_description:"URL of the input image to enhance"`
	ProductName string `json:"product_name" jsonschema_description:"Name of the product"`
	AuthToken   string `json:"auth_token" jsonschema_description:"Bearer token for authentication"`
}

type captureStoreDetailsArgs struct {
	StoreID        string `json:"store_id"`
	StoreName      string `json:"store_name"`
	Address        string `json:"address"`
	WhatsappNumber string `json:"whatsapp_number"`
	InstagramID    string `json:"instagram_id"`
	AuthToken      string `json:"auth_token"`
}

type uploadStoreImagesArgs struct {
	StoreID   string   `json:"store_id"`
	ImageURLs []string `json:"image_urls"`
	ImageType string   `json:"image_type" jsonschema:"enum=about,enum=what_we_do"`
	AuthToken string   `json:"auth_token"`
}

type captureStoreStoryArgs struct {
	StoreID   string             `json:"store_id"`
	StoreName string             `json:"store_name"`
	Stories   storyDetailsParams `json:"stories" jsonschema_description:"A mapping of story types to story texts."`
	AuthToken string             `json:"auth_token"`
}

type storyDetailsParams struct {
	ProcessSpeciality string `json:"process_speciality"`
	TimeForOneProduct string `json:"time_for_one_product"`
	Challenges        string `json:"challenges"`
}

type storeScopedArgs struct {
	StoreID   string `json:"store_id" jsonschema_description:"Store ID"`
	AuthToken string `json:"auth_token" jsonschema_description:"Bearer token"`
}

type productScopedArgs struct {
	ProductID string `json:"product_id" jsonschema_description:"Product ID"`
	AuthToken string `json:"auth_token" jsonschema_description:"Bearer token"`
}

type updateProductArgs struct {
	ProductID               string    `json:"product_id" jsonschema_description:"Product ID to update"`
	AuthToken               string    `json:"auth_token" jsonschema_description:"Bearer token for authentication"`
	ProductName             *string   `json:"product_name,omitempty" jsonschema_description:"Name of the product"`
	MRP                     *float64  `json:"mrp,omitempty" jsonschema_description:"Price of the product (MRP)"`
	IsVisibleInStorefront   *bool     `json:"is_visible_in_storefront,omitempty" jsonschema_description:"Whether the product is visible in the storefront"`
	ShortDescription        *string   `json:"short_description,omitempty" jsonschema_description:"Short description of the product"`
	Introduction            *string   `json:"introduction,omitempty" jsonschema_description:"Introduction or overview of the product"`
	KeyFeatures             *[]string `json:"key_features,omitempty" jsonschema_description:"List of key features"`
	BenefitsAndApplications *[]string `json:"benefits_and_applications,omitempty" jsonschema_description:"List of benefits and applications"`
	Inventory               *int      `json:"inventory,omitempty" jsonschema_description:"Available inventory quantity"`
}

type productEditLinkArgs struct {
	Phone     string `json:"phone" jsonschema_description:"Phone number linked to the store."`
	ProductID int    `json:"product_id" jsonschema_description:"Product ID to edit."`
}

type storeEditLinkArgs struct {
	Phone string `json:"phone" jsonschema_description:"Phone number linked to the store."`
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "auth_vendor",
		Description: "Authenticate a vendor using their phone number",
		Parameters:  schemaOf(authVendorArgs{}),
		Handler:     r.authVendor,
	})
	r.Register(&Tool{
		Name:        "create_store",
		Description: "Create a store for the vendor based on business categories. A store must not be created without user's explicit confirmation of category selection.",
		Parameters:  schemaOf(createStoreArgs{}),
		Handler:     r.createStore,
	})
	r.Register(&Tool{
		Name:        "create_product",
		Description: "Create a new product by uploading images and generating a description. Requires a bearer auth token.",
		Parameters:  schemaOf(createProductArgs{}),
		Handler:     r.createProduct,
	})
	r.Register(&Tool{
		Name:        "generate_ai_image",
		Description: "Generate AI-enhanced images for a product. It triggers the job and notifies the user asynchronously once done.",
		Parameters:  schemaOf(generateAIImageArgs{}),
		Handler:     r.generateAIImage,
	})
	r.Register(&Tool{
		Name:        "capture_store_details",
		Description: "Capture store name, address, WhatsApp number, and Instagram ID. Requires store_id and auth_token.",
		Parameters:  schemaOf(captureStoreDetailsArgs{}),
		Handler:     r.captureStoreDetails,
	})
	r.Register(&Tool{
		Name:        "upload_store_images",
		Description: "Upload workspace/process images. Requires image URLs, store_id, and auth_token.",
		Parameters:  schemaOf(uploadStoreImagesArgs{}),
		Handler:     r.uploadStoreImages,
	})
	r.Register(&Tool{
		Name:        "capture_store_story",
		Description: "Capture the user's story details about their process and challenges. Requires store_id, stories (a dict of 3 story types), and auth_token.",
		Parameters:  schemaOf(captureStoreStoryArgs{}),
		Handler:     r.captureStoreStory,
	})
	r.Register(&Tool{
		Name:        "get_storefront_link",
		Description: "Get the public storefront link for the user to share.",
		Parameters:  schemaOf(storeScopedArgs{}),
		Handler:     r.getStorefrontLink,
	})
	r.Register(&Tool{
		Name:        "get_storefront_qr",
		Description: "Generate a QR code image for the public storefront link and send it to the user.",
		Parameters:  schemaOf(storeScopedArgs{}),
		Handler:     r.getStorefrontQR,
	})
	r.Register(&Tool{
		Name:        "get_all_products",
		Description: "Fetch all products for a given store. Requires bearer auth.",
		Parameters:  schemaOf(storeScopedArgs{}),
		Handler:     r.getAllProducts,
	})
	r.Register(&Tool{
		Name:        "get_product_by_id",
		Description: "Get all product details by id. Requires bearer auth.",
		Parameters:  schemaOf(productScopedArgs{}),
		Handler:     r.getProductByID,
	})
	r.Register(&Tool{
		Name:        "get_storefront_details",
		Description: "Fetch detailed storefront info for a given store. Requires bearer auth.",
		Parameters:  schemaOf(storeScopedArgs{}),
		Handler:     r.getStorefrontDetails,
	})
	r.Register(&Tool{
		Name:        "update_product",
		Description: "Update a product by ID. Only allows updating specific editable fields. Requires bearer auth.",
		Parameters:  schemaOf(updateProductArgs{}),
		Handler:     r.updateProduct,
	})
	r.Register(&Tool{
		Name:        "generate_product_edit_link",
		Description: "Generate a one-click link to edit a specific product in the store dashboard.",
		Parameters:  schemaOf(productEditLinkArgs{}),
		Handler:     r.generateProductEditLink,
	})
	r.Register(&Tool{
		Name:        "generate_store_edit_link",
		Description: "Generate a one-click link to edit the store details in the dashboard.",
		Parameters:  schemaOf(storeEditLinkArgs{}),
		Handler:     r.generateStoreEditLink,
	})
}

func (r *Registry) authVendor(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[authVendorArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.AuthVendor(ctx, args.PhoneNo)
}

func (r *Registry) createStore(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[createStoreArgs](raw)
	if err != nil {
		return nil, err
	}
	categories := make([]string, len(args.Categories))
	for i, c := range args.Categories {
		categories[i] = string(c)
	}
	storeID, err := r.backend.CreateStore(ctx, args.Token, categories)
	if err != nil {
		return nil, err
	}
	return map[string]any{"store_id": storeID}, nil
}

func (r *Registry) createProduct(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[createProductArgs](raw)
	if err != nil {
		return nil, err
	}

	uploadResult, err := r.backend.UploadProductImages(ctx, args.AuthToken, args.StoreID, args.ImageURLs)
	if err != nil {
		return nil, err
	}

	productID := anyToString(uploadResult["product_id"])
	if productID == "" {
		return map[string]any{
			"error":         "Failed to get product_id from upload response",
			"upload_result": uploadResult,
		}, nil
	}

	descResult, err := r.backend.GenerateDescription(ctx, args.AuthToken, vendorapi.DescriptionRequest{
		ProductID:   productID,
		ProductName: args.ProductName,
		MRP:         args.MRP,
		Application: args.Application,
		Material:    args.Material,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"upload_result":      uploadResult,
		"description_result": descResult,
	}, nil
}

func (r *Registry) generateAIImage(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[generateAIImageArgs](raw)
	if err != nil {
		return nil, err
	}
	if r.images == nil {
		return nil, errors.New("image generation is not available")
	}

	jobID, result, err := r.backend.StartImageGeneration(ctx, args.AuthToken, args.ImageURL)
	if err != nil {
		return nil, err
	}
	if jobID == "" {
		return result, nil
	}

	conversationID := ConversationIDFromContext(ctx)
	r.logger.Info("image generation job started",
		"job_id", jobID,
		"product_id", args.ProductID,
		"conversation_id", conversationID,
	)
	r.images.Watch(conversationID, args.AuthToken, jobID)

	return "Image generation started, user will be sent images when done.", nil
}

func (r *Registry) captureStoreDetails(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[captureStoreDetailsArgs](raw)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"name":                 args.StoreName,
		"store_address_line_1": args.Address,
		"whatsapp_number":      args.WhatsappNumber,
	}
	if args.InstagramID != "" {
		payload["instagram_id"] = args.InstagramID
	}
	return r.backend.UpdateStorefrontInfo(ctx, args.AuthToken, args.StoreID, payload)
}

func (r *Registry) uploadStoreImages(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[uploadStoreImagesArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.UploadStoreImages(ctx, args.AuthToken, args.StoreID, args.ImageType, args.ImageURLs)
}

func (r *Registry) captureStoreStory(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[captureStoreStoryArgs](raw)
	if err != nil {
		return nil, err
	}

	profile, err := r.backend.GenerateStoreProfile(ctx, args.AuthToken, args.StoreID, args.StoreName, vendorapi.StoryDetails{
		ProcessSpeciality: args.Stories.ProcessSpeciality,
		TimeForOneProduct: args.Stories.TimeForOneProduct,
		Challenges:        args.Stories.Challenges,
	})
	if err != nil {
		return nil, err
	}

	updateResult, err := r.backend.UpdateStorefrontInfo(ctx, args.AuthToken, args.StoreID, map[string]any{
		"is_storefront_exists": true,
	})
	if err != nil {
		return nil, err
	}

	info, err := r.backend.GetStorefrontInfo(ctx, args.AuthToken, args.StoreID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"profile_response": profile,
		"update_result":    updateResult,
		"storefront_link":  r.backend.StorefrontLink(info.StoreLink),
	}, nil
}

func (r *Registry) getStorefrontLink(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[storeScopedArgs](raw)
	if err != nil {
		return nil, err
	}
	info, err := r.backend.GetStorefrontInfo(ctx, args.AuthToken, args.StoreID)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return map[string]any{
			"storefront_link": nil,
			"message":         "Storefront does not exist yet, ask the user to set it up with reference flow.",
		}, nil
	}
	return map[string]any{
		"storefront_link": r.backend.StorefrontLink(info.StoreLink),
	}, nil
}

func (r *Registry) getStorefrontQR(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[storeScopedArgs](raw)
	if err != nil {
		return nil, err
	}
	info, err := r.backend.GetStorefrontInfo(ctx, args.AuthToken, args.StoreID)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return map[string]any{
			"storefront_link": nil,
			"message":         "Storefront does not exist yet, ask the user to set it up with reference flow.",
		}, nil
	}

	link := r.backend.StorefrontLink(info.StoreLink)
	png, err := qrcode.Encode(link, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	notifier := NotifierFromContext(ctx)
	if notifier == nil {
		return nil, errors.New("no delivery channel for qr code")
	}
	conversationID := ConversationIDFromContext(ctx)
	if err := notifier.SendPhotoData(ctx, conversationID, "storefront_qr.png", png, "Scan to open your storefront"); err != nil {
		return nil, fmt.Errorf("send qr code: %w", err)
	}

	return map[string]any{
		"storefront_link": link,
		"message":         "QR code sent to the user.",
	}, nil
}

func (r *Registry) getAllProducts(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[storeScopedArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.GetAllProducts(ctx, args.AuthToken, args.StoreID)
}

func (r *Registry) getProductByID(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[productScopedArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.GetProduct(ctx, args.AuthToken, args.ProductID)
}

func (r *Registry) getStorefrontDetails(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[storeScopedArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.GetStorefrontDetails(ctx, args.AuthToken, args.StoreID)
}

func (r *Registry) updateProduct(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[updateProductArgs](raw)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if args.ProductName != nil {
		fields["product_name"] = *args.ProductName
	}
	if args.MRP != nil {
		fields["mrp"] = *args.MRP
	}
	if args.IsVisibleInStorefront != nil {
		fields["is_visible_in_storefront"] = *args.IsVisibleInStorefront
	}
	if args.ShortDescription != nil {
		fields["short_description"] = *args.ShortDescription
	}
	if args.Introduction != nil {
		fields["introduction"] = *args.Introduction
	}
	if args.KeyFeatures != nil {
		fields["key_features"] = *args.KeyFeatures
	}
	if args.BenefitsAndApplications != nil {
		fields["benefits_and_applications"] = *args.BenefitsAndApplications
	}
	if args.Inventory != nil {
		fields["inventory"] = *args.Inventory
	}

	return r.backend.UpdateProduct(ctx, args.AuthToken, args.ProductID, fields)
}

func (r *Registry) generateProductEditLink(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[productEditLinkArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.ProductEditLink(args.Phone, strconv.Itoa(args.ProductID)), nil
}

func (r *Registry) generateStoreEditLink(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[storeEditLinkArgs](raw)
	if err != nil {
		return nil, err
	}
	return r.backend.StoreEditLink(args.Phone), nil
}

// anyToString renders the decoded JSON value for an id field, which
// the backend returns as either a string or a number.
func anyToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
