package utils_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farm2market/internal/utils"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  utils.Pagination
	}{
		{"defaults", "", utils.Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"explicit window", "page=3&limit=10", utils.Pagination{Page: 3, Limit: 10, Offset: 20}},
		{"limit capped", "limit=5000", utils.Pagination{Page: 1, Limit: 100, Offset: 0}},
		{"negative values fall back", "page=-1&limit=-5", utils.Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"garbage falls back", "page=abc&limit=xyz", utils.Pagination{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			var got utils.Pagination
			app.Get("/items", func(c *fiber.Ctx) error {
				got = utils.ParsePagination(c)
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items?"+tc.query, nil))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.want, got)
		})
	}
}
