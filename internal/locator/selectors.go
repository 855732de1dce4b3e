package locator

import (
	"regexp"

	"github.com/hoony8355/searcap/internal/models"
)

// knownSelectors holds the per-surface selector variants that have matched
// the ad and price-comparison sections at some point. Naver rotates its
// markup regularly, so the lists are ordered newest first and probed in
// order until one hits.
var knownSelectors = map[models.Surface]map[models.SectionKind][]string{
	models.SurfaceSearch: {
		models.SectionPowerLink: {
			"#power_link_body",
			"section.sc_new.sp_nad",
			"div.sc_new.sp_nad",
			"#nx_ad_power",
			"div.ad_section.power_link",
			"div.nad_area",
		},
		models.SectionPriceCompare: {
			"#shop_section div.price_compare",
			"section.sc_new.sp_shop",
			"div.sc_new.sp_shop",
			"#lowestPrice_area",
			"div.shop_section",
		},
		models.SectionShopping: {
			"section.sc_new.sp_nshop",
			"div.sc_new.sp_nshop",
			"#shop_section",
			"div.api_subject_bx.shop_section",
		},
	},
	models.SurfaceShopping: {
		models.SectionPowerLink: {
			"div[class^='adProduct_list_area']",
			"li[class^='ad_item']",
			"div[class^='adProduct_item']",
		},
		models.SectionPriceCompare: {
			"div[class^='compare_area']",
			"div[class^='lowestPrice_area']",
			"div[class^='priceCompare_list']",
		},
		models.SectionShopping: {
			"div[class^='basicList_list_basis']",
			"ul[class^='list_basis']",
			"div[class^='product_list_area']",
		},
	},
}

// sectionMarkers are the visible Korean labels that head each section.
var sectionMarkers = map[models.SectionKind]*regexp.Regexp{
	models.SectionPowerLink:    regexp.MustCompile(`파워링크|파워\s*콘텐츠|PowerLink`),
	models.SectionPriceCompare: regexp.MustCompile(`가격\s*비교|최저가|판매처\s*\d+`),
	models.SectionShopping:     regexp.MustCompile(`네이버\s*쇼핑|쇼핑\s*더보기|쇼핑상품`),
}

// adLinkSelector matches anchors that go through Naver's ad click
// redirectors. A container dense with these is an ad section regardless
// of its markup.
const adLinkSelector = "a[href*='adcr.naver.com'], a[href*='ader.naver.com']"

// attributeProbes are last-resort id/class substring probes per section
// kind, filtered by a visible-content sanity check before use.
var attributeProbes = map[models.SectionKind][]string{
	models.SectionPowerLink: {
		"[class*='power_link']",
		"[id*='power_link']",
		"[class*='nad_area']",
		"[class*='ad_section']",
	},
	models.SectionPriceCompare: {
		"[class*='price_compare']",
		"[class*='lowestPrice']",
		"[id*='lowestPrice']",
		"[class*='compare_area']",
	},
	models.SectionShopping: {
		"[class*='shop_section']",
		"[id*='shop_section']",
		"[class*='shoppingProduct']",
	},
}
