package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"autodiag/pkg/domain"
)

// GormStore implements Store using GORM + Postgres, for deployments that
// need sessions to survive restarts.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&SessionModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateSession writes the session row plus its seed messages atomically.
func (s *GormStore) CreateSession(sess domain.Session) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sessionToModel(sess)).Error; err != nil {
			return err
		}
		for i, msg := range sess.Messages {
			model, err := messageToModel(sess.ID, i, msg)
			if err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSession loads a session with its messages in append order.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	var msgModels []MessageModel
	if err := s.db.Where("session_id = ?", id).Order("seq ASC").Find(&msgModels).Error; err != nil {
		return domain.Session{}, false, err
	}
	sess, err := sessionFromModel(model, msgModels)
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

// AppendTurn inserts both turn messages and updates derived session fields
// in one transaction.
func (s *GormStore) AppendTurn(id string, userMsg, assistantMsg domain.Message, diagnosisComplete bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sess SessionModel
		if err := tx.First(&sess, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		for i, msg := range []domain.Message{userMsg, assistantMsg} {
			model, err := messageToModel(id, sess.MessageCount+i, msg)
			if err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		updates := map[string]any{
			"last_message":  preview(assistantMsg.Content),
			"message_count": sess.MessageCount + 2,
		}
		if diagnosisComplete {
			updates["diagnosis_complete"] = true
		}
		return tx.Model(&SessionModel{}).Where("id = ?", id).Updates(updates).Error
	})
}

// ListSessionsByOwner returns summaries ordered by created_at descending.
func (s *GormStore) ListSessionsByOwner(ownerID string) ([]domain.SessionSummary, error) {
	var models []SessionModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SessionSummary, 0, len(models))
	for _, m := range models {
		res = append(res, domain.SessionSummary{
			ID:           m.ID,
			Vehicle:      domain.Vehicle{Manufacturer: m.Manufacturer, Model: m.Model, Year: m.Year},
			CreatedAt:    m.CreatedAt,
			LastMessage:  m.LastMessage,
			MessageCount: m.MessageCount,
		})
	}
	return res, nil
}

// DeleteSessionsByOwner removes the owner's sessions and their messages
// atomically.
func (s *GormStore) DeleteSessionsByOwner(ownerID string) (int, error) {
	deleted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&SessionModel{}).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", ids).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&SessionModel{}).Error; err != nil {
			return err
		}
		deleted = len(ids)
		return nil
	})
	return deleted, err
}

func sessionToModel(s domain.Session) *SessionModel {
	return &SessionModel{
		ID:                s.ID,
		OwnerID:           s.OwnerID,
		Manufacturer:      s.Vehicle.Manufacturer,
		Model:             s.Vehicle.Model,
		Year:              s.Vehicle.Year,
		LastMessage:       s.LastMessage,
		MessageCount:      s.MessageCount,
		DiagnosisComplete: s.DiagnosisComplete,
		CreatedAt:         s.CreatedAt,
	}
}

func sessionFromModel(m SessionModel, msgs []MessageModel) (domain.Session, error) {
	sess := domain.Session{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		Vehicle:           domain.Vehicle{Manufacturer: m.Manufacturer, Model: m.Model, Year: m.Year},
		CreatedAt:         m.CreatedAt,
		LastMessage:       m.LastMessage,
		MessageCount:      m.MessageCount,
		DiagnosisComplete: m.DiagnosisComplete,
	}
	for _, msg := range msgs {
		converted, err := messageFromModel(msg)
		if err != nil {
			return domain.Session{}, err
		}
		sess.Messages = append(sess.Messages, converted)
	}
	return sess, nil
}

func messageToModel(sessionID string, seq int, msg domain.Message) (*MessageModel, error) {
	model := &MessageModel{
		ID:        msg.ID,
		SessionID: sessionID,
		Seq:       seq,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CarImage:  msg.CarImage,
		CreatedAt: msg.CreatedAt,
	}
	if len(msg.Products) > 0 {
		raw, err := json.Marshal(msg.Products)
		if err != nil {
			return nil, fmt.Errorf("marshal products: %w", err)
		}
		model.Products = datatypes.JSON(raw)
	}
	return model, nil
}

func messageFromModel(m MessageModel) (domain.Message, error) {
	msg := domain.Message{
		ID:        m.ID,
		Role:      domain.MessageRole(m.Role),
		Content:   m.Content,
		CarImage:  m.CarImage,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Products) > 0 {
		if err := json.Unmarshal(m.Products, &msg.Products); err != nil {
			return domain.Message{}, fmt.Errorf("unmarshal products: %w", err)
		}
	}
	return msg, nil
}
