package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

// DemoTasks заполняют каталог при первом запуске.
var DemoTasks = []model.Task{
	{Title: "Visit our Blogger site", Reward: 10, Link: "https://yourblog.blogspot.com"},
	{Title: "Join Telegram Channel", Reward: 15, Link: "https://t.me/yourchannel"},
	{Title: "Watch Ad", Reward: 5, Link: "#"},
}

// Catalog хранит задания, за которые начисляются монеты.
type Catalog struct {
	store repository.Store
}

// NewCatalog создаёт каталог заданий поверх хранилища.
func NewCatalog(store repository.Store) *Catalog {
	return &Catalog{store: store}
}

// ListTasks возвращает задания в порядке возрастания идентификатора.
func (c *Catalog) ListTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		tasks, err = tx.ListTasks(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask возвращает задание по идентификатору.
func (c *Catalog) GetTask(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		return err
	})
	return task, err
}

// AddTask добавляет задание с идентификатором max(id)+1.
func (c *Catalog) AddTask(ctx context.Context, title string, reward int64, link string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if reward < 0 || title == "" {
		return model.Task{}, fmt.Errorf("%w: reward must be non-negative and title non-empty", repository.ErrInvalidInput)
	}

	var task model.Task
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.InsertTask(ctx, title, reward, strings.TrimSpace(link))
		return err
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("add task: %w", err)
	}
	return task, nil
}

// SeedIfEmpty заполняет пустой каталог демонстрационными заданиями.
// Возвращает true, если задания были добавлены.
func (c *Catalog) SeedIfEmpty(ctx context.Context) (bool, error) {
	seeded := false
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		seeded = false
		if err := tx.LockTasks(ctx); err != nil {
			return err
		}

		n, err := tx.CountTasks(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for _, t := range DemoTasks {
			if _, err := tx.InsertTask(ctx, t.Title, t.Reward, t.Link); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed tasks: %w", err)
	}
	return seeded, nil
}
