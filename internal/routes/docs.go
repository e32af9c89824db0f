package routes

import "github.com/gofiber/fiber/v2"

type endpointDoc struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Auth        bool   `json:"auth"`
	Description string `json:"description"`
}

var apiEndpoints = []endpointDoc{
	{Method: "POST", Path: "/api/auth/register", Auth: false, Description: "Create an account and receive a session token"},
	{Method: "POST", Path: "/api/auth/login", Auth: false, Description: "Exchange credentials for a session token"},
	{Method: "GET", Path: "/api/auth/me", Auth: true, Description: "Current account profile"},
	{Method: "POST", Path: "/api/v1/push-token", Auth: true, Description: "Register a device push token"},
	{Method: "GET", Path: "/api/v1/conversations", Auth: true, Description: "Conversation directory, most recent first"},
	{Method: "POST", Path: "/api/v1/conversations", Auth: true, Description: "Find or create the conversation with a target user"},
	{Method: "GET", Path: "/api/v1/conversations/:id/messages", Auth: true, Description: "Paginated chronological message history"},
	{Method: "POST", Path: "/api/v1/conversations/:id/read", Auth: true, Description: "Mark the conversation read for the caller"},
	{Method: "POST", Path: "/api/v1/messages", Auth: true, Description: "Send a message, optionally with an image attachment"},
	{Method: "POST", Path: "/api/v1/attachments", Auth: true, Description: "Upload chat media ahead of a send"},
	{Method: "GET", Path: "/api/v1/ws", Auth: true, Description: "WebSocket stream of conversation events"},
}

// RegisterDocs serves a development-only endpoint listing.
func RegisterDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   "luxliving-messaging",
			"endpoints": apiEndpoints,
		})
	})
}
