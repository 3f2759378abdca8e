package parser

// Field names a record field and the selectors tried for it, in order. The
// first selector yielding a non-empty value wins. Attr selects an attribute
// instead of the element text.
type Field struct {
	Name      string
	Selectors []string
	Attr      string
}

// Table maps every ProductRecord field to its selectors for one kind of page.
// A Table with no ISBN selectors derives the ISBN from numeric product ids.
type Table struct {
	Name          string
	Title         Field
	TitleFallback Field
	Author        Field
	ISBN          Field
	Price         Field
	Rating        Field
	Image         Field
}

// PageTable extracts from the public product detail page.
var PageTable = Table{
	Name:          "page",
	Title:         Field{Name: "title", Selectors: []string{"#productTitle", "#ebooksProductTitle"}},
	TitleFallback: Field{Name: "title", Selectors: []string{"title"}},
	Author: Field{Name: "author", Selectors: []string{
		"#bylineInfo a",
		"#bylineInfo .author a",
	}},
	ISBN: Field{Name: "isbn", Selectors: []string{
		"#rpi-attribute-book_details-isbn10 .rpi-attribute-value",
		"#rpi-attribute-book_details-isbn13 .rpi-attribute-value",
	}},
	Price: Field{Name: "price", Selectors: []string{
		".priceToPay .a-offscreen",
		".priceToPay",
		"span.a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
	}},
	Rating: Field{Name: "rating", Selectors: []string{
		"#averageCustomerReviews span.a-declarative a > span",
		"#acrPopover .a-icon-alt",
	}},
	Image: Field{Name: "image", Selectors: []string{"#imgTagWrapperId img", "#landingImage"}, Attr: "src"},
}

// WidgetTable extracts from the legacy ad-system product widget, which has
// no ISBN element.
var WidgetTable = Table{
	Name:          "widget",
	Title:         Field{Name: "title", Selectors: []string{"#title a", "#title"}},
	TitleFallback: Field{Name: "title", Selectors: []string{"title"}},
	Author:        Field{Name: "author", Selectors: []string{"#author", ".author"}},
	Price:         Field{Name: "price", Selectors: []string{"#price .price", ".price"}},
	Image:         Field{Name: "image", Selectors: []string{"#image img", "#product-image img"}, Attr: "src"},
}

// TableFor returns the table matching a fetcher source name. Unknown sources
// get the product page table.
func TableFor(source string) Table {
	if source == WidgetTable.Name {
		return WidgetTable
	}
	return PageTable
}
