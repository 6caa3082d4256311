package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/products"
)

// ProductView is the album slice embedded in task payloads.
type ProductView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Price    string `json:"price"`
	RatingNo int    `json:"ratingNo"`
}

// TaskView is the presentation payload for the worker's current task,
// including the day counters the client renders alongside it.
type TaskView struct {
	ID                   string        `json:"id"`
	Products             []ProductView `json:"products"`
	Amount               string        `json:"amount"`
	Commission           string        `json:"commission"`
	CommissionPercentage float64       `json:"commissionPercentage"`
	TotalNumberCanPlay   int           `json:"totalNumberCanPlay"`
	CurrentNumberCount   int           `json:"currentNumberCount"`
	Special              bool          `json:"specialProduct"`
	CreatedAt            time.Time     `json:"createdAt"`
	RatingNo             string        `json:"ratingNo"`
	GameNumber           int           `json:"gameNumber"`
	Pending              bool          `json:"pending"`
}

// PlayResult reports a play attempt. Played is false when the task was
// parked for insufficient balance instead of completed.
type PlayResult struct {
	Task    *TaskView `json:"task"`
	Played  bool      `json:"played"`
	Message string    `json:"message"`
}

// HistoryEntry is the read shape for past assignments.
type HistoryEntry struct {
	ID          string        `json:"id"`
	Products    []ProductView `json:"products"`
	Amount      string        `json:"amount"`
	Commission  string        `json:"commission"`
	RatingScore int           `json:"ratingScore"`
	Comment     string        `json:"comment"`
	Special     bool          `json:"specialProduct"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	CreatedAt   time.Time     `json:"createdAt"`
	RatingNo    string        `json:"ratingNo"`
	Pending     bool          `json:"pending"`
	Played      bool          `json:"played"`
}

// SpecialUser identifies the worker a special task targets.
type SpecialUser struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// SpecialView is the admin read shape for injected specials.
type SpecialView struct {
	ID               string         `json:"id"`
	User             SpecialUser    `json:"user"`
	Band             *holdband.Band `json:"holdBand,omitempty"`
	NumberOfProducts int            `json:"numberOfProducts"`
	RankAppearance   int            `json:"rankAppearance"`
	Amount           string         `json:"amount"`
	Commission       string         `json:"commission"`
	Active           bool           `json:"isActive"`
	Played           bool           `json:"played"`
	Pending          bool           `json:"pending"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (s *Service) buildView(ctx context.Context, st *playerState, t *Task) (*TaskView, error) {
	prods, err := s.loadProducts(ctx, t.ProductIDs)
	if err != nil {
		return nil, err
	}
	return &TaskView{
		ID:                   t.ID,
		Products:             prods,
		Amount:               t.Amount,
		Commission:           t.Commission,
		CommissionPercentage: t.CommissionPercentage,
		TotalNumberCanPlay:   st.dailyMissions(),
		CurrentNumberCount:   st.user.SubmissionsToday,
		Special:              t.Special,
		CreatedAt:            t.CreatedAt,
		RatingNo:             t.RatingNo,
		GameNumber:           t.GameNumber,
		Pending:              t.Pending,
	}, nil
}

// loadProducts resolves album links, skipping albums deleted since the
// task was created.
func (s *Service) loadProducts(ctx context.Context, ids []string) ([]ProductView, error) {
	views := make([]ProductView, 0, len(ids))
	for _, id := range ids {
		p, err := s.products.Get(ctx, id)
		if err != nil {
			if errors.Is(err, products.ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		views = append(views, ProductView{
			ID:       p.ID,
			Name:     p.Name,
			Image:    p.Image,
			Price:    p.Price,
			RatingNo: p.RatingNo,
		})
	}
	return views, nil
}
