package repo

import (
	"context"

	"github.com/Skotchmaster/message_board/internal/models"
)

func (r *GormRepo) CreateThread(ctx context.Context, t *models.Thread) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) ListThreads(ctx context.Context) ([]models.Thread, error) {
	threads := []models.Thread{}
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *GormRepo) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.DB.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &thread, nil
}

func (r *GormRepo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *GormRepo) ListMessages(ctx context.Context, threadID uint) ([]models.Message, error) {
	messages := []models.Message{}
	if err := r.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *GormRepo) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.DB.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (r *GormRepo) SaveMessage(ctx context.Context, m *models.Message) error {
	return r.DB.WithContext(ctx).Save(m).Error
}

func (r *GormRepo) DeleteMessage(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
