package tools

import "github.com/invopop/jsonschema"

// Category is a storefront business category. The backend only accepts
// values from the fixed catalog, so the schema carries them as an enum.
type Category string

// BusinessCategories lists every category the store service accepts.
var BusinessCategories = []string{
	"Animals & Pet Supplies",
	"Apparel & Accessories",
	"Arts & Entertainment",
	"Baby & Toddler",
	"Bundles",
	"Business & Industrial",
	"Cameras & Optics",
	"Electronics",
	"Food, Beverages & Tobacco",
	"Furniture",
	"Gift Cards",
	"Hardware",
	"Health & Beauty",
	"Home & Garden",
	"Luggage & Bags",
	"Mature",
	"Media",
	"Office Supplies",
	"Product Add-Ons",
	"Religious & Ceremonial",
	"Services",
	"Software",
	"Sporting Goods",
	"Toys & Games",
	"Uncategorized",
	"Vehicles & Parts",
}

// JSONSchema emits the enum by hand. Several category names contain
// commas, which the struct tag syntax cannot carry.
func (Category) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(BusinessCategories))
	for i, c := range BusinessCategories {
		enum[i] = c
	}
	return &jsonschema.Schema{
		Type: "string",
		Enum: enum,
	}
}

// schemaOf reflects a parameter struct into an inline JSON schema
// object suitable for the tool catalog.
func schemaOf(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(v)
	s.Version = ""
	return s
}
