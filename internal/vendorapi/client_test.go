package vendorapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "shop.example.test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthVendor(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ocr/auth/vendor/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"access_token":"tok123","store_id":77,"new_user":true}`)
	}))

	res, err := c.AuthVendor(context.Background(), "+919876500000")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if gotBody["phone_no"] != "+919876500000" {
		t.Errorf("phone_no: %q", gotBody["phone_no"])
	}
	if res.UserToken != "tok123" {
		t.Errorf("token: %q", res.UserToken)
	}
	// Numeric store ids normalize to strings.
	if res.StoreID != "77" {
		t.Errorf("store id: %q", res.StoreID)
	}
	if !res.NewUser {
		t.Error("new_user not carried")
	}
}

func TestCreateStore_SendsBearer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("authorization: %q", got)
		}
		var body map[string][]string
		json.NewDecoder(r.Body).Decode(&body)
		if len(body["categories"]) != 2 {
			t.Errorf("categories: %v", body["categories"])
		}
		io.WriteString(w, `{"id":"store-9"}`)
	}))

	id, err := c.CreateStore(context.Background(), "tok123", []string{"Electronics", "Hardware"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if id != "store-9" {
		t.Errorf("store id: %q", id)
	}
}

func TestBackendErrorIncludesBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"token expired"}`)
	}))

	_, err := c.GetAllProducts(context.Background(), "stale", "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "token expired") {
		t.Errorf("error: %v", err)
	}
}

func TestGetAllProducts_QueryParam(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/get_all_products/" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("store_id"); got != "42" {
			t.Errorf("store_id: %q", got)
		}
		io.WriteString(w, `[{"id":1,"product_name":"Mug"}]`)
	}))

	res, err := c.GetAllProducts(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("get all products: %v", err)
	}
	items, ok := res.([]any)
	if !ok || len(items) != 1 {
		t.Errorf("result: %#v", res)
	}
}

func TestUpdateProduct_SparseFields(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/ocr/store/product/5/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"ok":true}`)
	}))

	_, err := c.UpdateProduct(context.Background(), "tok", "5", map[string]any{
		"mrp":       249.0,
		"inventory": 3,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(gotBody) != 2 {
		t.Errorf("body should carry only provided fields: %v", gotBody)
	}
	if gotBody["mrp"] != 249.0 {
		t.Errorf("mrp: %v", gotBody["mrp"])
	}
}

func TestGetStorefrontInfo_Flags(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apiv2/storefront/get_info/9/" {
			t.Errorf("path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"is_storefront_exists":true,"store_link":"annas-pottery"}`)
	}))

	info, err := c.GetStorefrontInfo(context.Background(), "tok", "9")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	if !info.Exists {
		t.Error("exists flag not parsed")
	}
	if info.StoreLink != "annas-pottery" {
		t.Errorf("store link: %q", info.StoreLink)
	}
}

func TestStartImageGeneration(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["generation_type"] != "both" {
			t.Errorf("generation_type: %q", body["generation_type"])
		}
		io.WriteString(w, `{"job_id":"job-1"}`)
	}))

	jobID, raw, err := c.StartImageGeneration(context.Background(), "tok", "http://img.example.test/a.jpg")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("job id: %q", jobID)
	}
	if raw["job_id"] != "job-1" {
		t.Errorf("raw: %v", raw)
	}
}

func TestCheckImageJob(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/check_status/job-1/" {
			t.Errorf("path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"status":"completed","result_image_url":[{"type":"white","value":"http://img/w.jpg"}]}`)
	}))

	status, err := c.CheckImageJob(context.Background(), "tok", "job-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.Status != JobStatusCompleted {
		t.Errorf("status: %q", status.Status)
	}
	if len(status.Images) != 1 || status.Images[0].URL != "http://img/w.jpg" {
		t.Errorf("images: %+v", status.Images)
	}
}

func TestUploadProductImages_Multipart(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer imgSrv.Close()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot/upload_image/" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("store_id"); got != "7" {
			t.Errorf("store_id: %q", got)
		}
		if len(r.MultipartForm.File["images"]) != 1 {
			t.Errorf("images parts: %d", len(r.MultipartForm.File["images"]))
		}
		io.WriteString(w, `{"product_id":31}`)
	}))

	result, err := c.UploadProductImages(context.Background(), "tok", "7", []string{imgSrv.URL + "/a.jpg"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result["product_id"] != 31.0 {
		t.Errorf("product_id: %v", result["product_id"])
	}
}

func TestLinkBuilders(t *testing.T) {
	c := NewClient("http://backend.invalid", "shop.example.test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := c.StorefrontLink("annas-pottery"); got != "https://shop.example.test/annas-pottery/" {
		t.Errorf("storefront link: %q", got)
	}
	if got := c.ProductEditLink("+91987", "12"); !strings.Contains(got, "/edit/product?") || !strings.Contains(got, "productId=12") {
		t.Errorf("product edit link: %q", got)
	}
	if got := c.StoreEditLink("+91987"); !strings.Contains(got, "/edit/store?phone=") {
		t.Errorf("store edit link: %q", got)
	}
}
