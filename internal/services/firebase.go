package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var (
	// FirebaseApp is the Firebase app instance
	FirebaseApp *firebase.App
	// MessagingClient is the Firebase Cloud Messaging client
	MessagingClient *messaging.Client
)

// InitFirebase initializes Firebase Admin SDK
func InitFirebase() error {
	ctx := context.Background()

	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		log.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return nil
	}

	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting messaging client: %v", err)
	}

	FirebaseApp = app
	MessagingClient = client

	log.Info("Firebase Cloud Messaging initialized")
	return nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// SendNotificationToToken sends a notification to a specific FCM token
func SendNotificationToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if MessagingClient == nil {
		log.Warn("Firebase not initialized. Skipping notification.")
		return nil
	}
	if token == "" {
		return nil
	}

	// FCM data values must be strings
	dataStrings := make(map[string]string)
	for key, value := range payload.Data {
		switch v := value.(type) {
		case string:
			dataStrings[key] = v
		case int, int64, uint, float64, bool:
			dataStrings[key] = fmt.Sprintf("%v", v)
		default:
			jsonData, err := json.Marshal(v)
			if err != nil {
				log.WithError(err).WithField("key", key).Error("Error marshaling notification data")
				continue
			}
			dataStrings[key] = string(jsonData)
		}
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:  dataStrings,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				ChannelID:    "rideshare_default",
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:          "default",
					MutableContent: true,
				},
			},
		},
	}

	response, err := MessagingClient.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending message: %v", err)
	}

	log.WithField("response", response).Debug("Sent push notification")
	return nil
}

// SendSeatRequestedNotification tells a driver a hitcher wants a seat.
func SendSeatRequestedNotification(ctx context.Context, driverToken string, rideID uint, hitcherName, pickup string, fare float64) error {
	return SendNotificationToToken(ctx, driverToken, NotificationPayload{
		Title: "New Seat Request",
		Body:  fmt.Sprintf("%s requested a seat (pickup: %s, fare: %.2f)", hitcherName, pickup, fare),
		Data: map[string]interface{}{
			"type":   "seat_requested",
			"rideId": rideID,
		},
	})
}

// SendRequestAcceptedNotification tells a hitcher their request was accepted.
func SendRequestAcceptedNotification(ctx context.Context, hitcherToken string, rideID uint, driverName, departureTime string) error {
	return SendNotificationToToken(ctx, hitcherToken, NotificationPayload{
		Title: "Request Accepted",
		Body:  fmt.Sprintf("%s accepted your seat request. Departure at %s.", driverName, departureTime),
		Data: map[string]interface{}{
			"type":   "request_accepted",
			"rideId": rideID,
		},
	})
}

// SendRequestRejectedNotification tells a hitcher their request was rejected.
func SendRequestRejectedNotification(ctx context.Context, hitcherToken string, rideID uint) error {
	return SendNotificationToToken(ctx, hitcherToken, NotificationPayload{
		Title: "Request Not Accepted",
		Body:  "The driver could not accept your seat request for this ride.",
		Data: map[string]interface{}{
			"type":   "request_rejected",
			"rideId": rideID,
		},
	})
}

// SendAutoCancelledNotification explains a cascade cancellation to a hitcher:
// another request for the same day and direction was accepted, so this one
// was withdrawn automatically with no reliability impact.
func SendAutoCancelledNotification(ctx context.Context, hitcherToken string, rideID uint) error {
	return SendNotificationToToken(ctx, hitcherToken, NotificationPayload{
		Title: "Request Withdrawn Automatically",
		Body:  "Another ride was confirmed for the same trip, so this request was withdrawn. Your reliability is unaffected.",
		Data: map[string]interface{}{
			"type":   "request_auto_cancelled",
			"rideId": rideID,
		},
	})
}

// SendRideCancelledNotification tells an accepted hitcher the driver
// cancelled the whole ride.
func SendRideCancelledNotification(ctx context.Context, hitcherToken string, rideID uint, driverName string) error {
	return SendNotificationToToken(ctx, hitcherToken, NotificationPayload{
		Title: "Ride Cancelled",
		Body:  fmt.Sprintf("%s cancelled the ride you were confirmed on. Your reliability is unaffected.", driverName),
		Data: map[string]interface{}{
			"type":   "ride_cancelled_by_driver",
			"rideId": rideID,
		},
	})
}

// SendRequestCancelledNotification tells a driver an accepted hitcher
// withdrew, freeing the seat.
func SendRequestCancelledNotification(ctx context.Context, driverToken string, rideID uint, hitcherName string) error {
	return SendNotificationToToken(ctx, driverToken, NotificationPayload{
		Title: "Seat Freed",
		Body:  fmt.Sprintf("%s cancelled their seat on your ride.", hitcherName),
		Data: map[string]interface{}{
			"type":   "request_cancelled",
			"rideId": rideID,
		},
	})
}
