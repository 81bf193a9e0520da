package services

import (
	"errors"
	"log"
	"time"

	"mileage-redemption-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRegistry answers "which promotional event of type X is in effect at
// time T" for the bonus engine, and carries the admin surface for managing
// events.
type EventRegistry struct {
	DB *gorm.DB
}

func NewEventRegistry(db *gorm.DB) *EventRegistry {
	return &EventRegistry{DB: db}
}

// ActiveEvent returns the highest-amount active event of the given type at
// the given time, or nil when none is running.
func (r *EventRegistry) ActiveEvent(eventType models.PromoEventType, at time.Time) (*models.PromoEvent, error) {
	var event models.PromoEvent
	err := r.DB.Where("type = ? AND active = ? AND starts_at <= ? AND ends_at >= ?",
		eventType, true, at, at).
		Order("amount DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// DeactivateEnded marks events past their end time inactive. Called by the
// scheduler; purely cosmetic since ActiveEvent also checks the window.
func (r *EventRegistry) DeactivateEnded() (int64, error) {
	res := r.DB.Model(&models.PromoEvent{}).
		Where("active = ? AND ends_at < ?", true, time.Now()).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// --- Fiber handlers ---

// CreateEvent creates a promotional event (Admin only).
func (r *EventRegistry) CreateEvent(c *fiber.Ctx) error {
	var req struct {
		Type     models.PromoEventType `json:"type"`
		Title    string                `json:"title"`
		Amount   int64                 `json:"amount"`
		StartsAt time.Time             `json:"starts_at"`
		EndsAt   time.Time             `json:"ends_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Type != models.PromoEventSignupBonus && req.Type != models.PromoEventReferralBonus {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be signup_bonus or referral_bonus"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ends_at must be after starts_at"})
	}

	event := &models.PromoEvent{
		ID:       uuid.NewString(),
		Type:     req.Type,
		Title:    req.Title,
		Amount:   req.Amount,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Active:   true,
	}
	if err := r.DB.Create(event).Error; err != nil {
		log.Printf("DB Error creating promo event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// ListEvents lists promotional events, newest first (Admin only).
func (r *EventRegistry) ListEvents(c *fiber.Ctx) error {
	var events []models.PromoEvent
	if err := r.DB.Order("created_at DESC").Limit(100).Find(&events).Error; err != nil {
		log.Printf("DB Error listing promo events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list events"})
	}
	return c.JSON(events)
}

// DeactivateEvent turns an event off before its end time (Admin only).
func (r *EventRegistry) DeactivateEvent(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	res := r.DB.Model(&models.PromoEvent{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		log.Printf("DB Error deactivating promo event %s: %v", id, res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate event"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
	}
	return c.JSON(fiber.Map{"message": "Event deactivated", "event_id": id})
}
