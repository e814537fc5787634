package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/services"
)

// PackageView is a catalog entry as shown on the storefront.
type PackageView struct {
	Points       int     `json:"points"       example:"2000"`
	Bonus        int     `json:"bonus"        example:"50"`
	TotalPoints  int     `json:"totalPoints"  example:"2050"`
	Price        float64 `json:"price"        example:"38.9"`
	PriceDisplay string  `json:"priceDisplay" example:"38.90"`
	Popular      bool    `json:"popular"      example:"false"`
}

// CatalogResponse lists the packages on sale.
type CatalogResponse struct {
	Packages []PackageView `json:"packages"`
}

func packageView(p domain.Package) PackageView {
	return PackageView{
		Points:       p.Points,
		Bonus:        p.Bonus,
		TotalPoints:  p.Points + p.Bonus,
		Price:        p.Price,
		PriceDisplay: services.FormatPrice(p.Price),
		Popular:      p.Popular,
	}
}

// ListPackages godoc
// @ID          listPackages
// @Summary     List VP packages
// @Description Returns the VP packages offered on the storefront, cheapest first.
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.CatalogResponse
// @Router      /packages [get]
func (h *Handlers) ListPackages(c *gin.Context) {
	out := make([]PackageView, 0, len(domain.Catalog))
	for _, p := range domain.Catalog {
		out = append(out, packageView(p))
	}
	c.Header("Cache-Control", "public, max-age=300")
	ok(c, http.StatusOK, CatalogResponse{Packages: out})
}
