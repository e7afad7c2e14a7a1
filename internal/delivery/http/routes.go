package http

import (
	"net/http"

	wsDelivery "linkup/internal/delivery/websocket"

	"github.com/go-chi/chi/v5"
)

func MapHttpRoutes(r *chi.Mux, httpHandler *HttpHandler, websocketHandler *wsDelivery.WebsocketHandler, authMiddleware *AuthMiddleware) {
	r.Handle("/ws", http.HandlerFunc(websocketHandler.HandleWebSocket))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", http.HandlerFunc(httpHandler.CreateRoom))
			r.Get("/", http.HandlerFunc(httpHandler.ListRooms))
			r.Get("/{roomId}", http.HandlerFunc(httpHandler.GetRoom))
			r.Delete("/{roomId}", http.HandlerFunc(httpHandler.DeleteRoom))
			r.Post("/{roomId}/participants", http.HandlerFunc(httpHandler.AddParticipants))
			r.Get("/{roomId}/messages", http.HandlerFunc(httpHandler.GetMessages))
			r.Post("/{roomId}/messages", http.HandlerFunc(httpHandler.SendMessage))
		})

		r.Route("/messages", func(r chi.Router) {
			r.Delete("/{messageId}", http.HandlerFunc(httpHandler.DeleteMessage))
			r.Post("/{messageId}/seen", http.HandlerFunc(httpHandler.MarkSeen))
		})

		r.Get("/permissions/check", http.HandlerFunc(httpHandler.CheckPermission))

		r.Route("/permission-requests", func(r chi.Router) {
			r.Post("/", http.HandlerFunc(httpHandler.CreatePermissionRequest))
			r.Get("/", http.HandlerFunc(httpHandler.ListPermissionRequests))
			r.Post("/{requestId}/respond", http.HandlerFunc(httpHandler.RespondPermissionRequest))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", http.HandlerFunc(httpHandler.ListNotifications))
			r.Post("/read-all", http.HandlerFunc(httpHandler.MarkAllNotificationsRead))
			r.Post("/{notificationId}/read", http.HandlerFunc(httpHandler.MarkNotificationRead))
			r.Delete("/{notificationId}", http.HandlerFunc(httpHandler.DeleteNotification))
		})
	})

	// Service-to-service hooks, expected to sit behind network policy
	r.Route("/internal", func(r chi.Router) {
		r.Post("/events", http.HandlerFunc(httpHandler.IngestEvent))
		r.Post("/users/{userId}/purge", http.HandlerFunc(httpHandler.PurgeUserContent))
	})
}
