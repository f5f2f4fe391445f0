package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Costeo-api/internal/application/dto"
)

// HeaderOrgID cabecera con la organización del caller. La autenticación real
// vive en el gateway que consume este motor; aquí solo se exige la identidad
// de organización ya resuelta.
const HeaderOrgID = "X-Org-ID"

const orgIDKey = "org_id"

// OrgMiddleware exige X-Org-ID en toda ruta del motor y lo deja en el
// contexto de la petición.
func OrgMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgID := c.Get(HeaderOrgID)
		if orgID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ORG", Message: "falta la cabecera X-Org-ID"})
		}
		c.Locals(orgIDKey, orgID)
		return c.Next()
	}
}

// GetOrgID devuelve la organización de la petición ("" si no pasó por el middleware).
func GetOrgID(c *fiber.Ctx) string {
	if v, ok := c.Locals(orgIDKey).(string); ok {
		return v
	}
	return ""
}
