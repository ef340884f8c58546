package handler

import (
	"time"

	"github.com/sakashimaa/product-showcase/internal/authz"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/listing"
)

type CommentResponse struct {
	ID                int64     `json:"id"`
	Message           string    `json:"message"`
	AuthorID          string    `json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	IsByCreator       bool      `json:"is_by_creator"`
	CreatedAt         time.Time `json:"created_at"`
}

type ProductResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Company      string            `json:"company"`
	URL          string            `json:"url"`
	Description  string            `json:"description"`
	ImageURL     string            `json:"image_url,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Creator      domain.Creator    `json:"creator"`
	Votes        int64             `json:"votes"`
	VotedBy      []string          `json:"voted_by"`
	HasVoted     bool              `json:"has_voted"`
	CanDelete    bool              `json:"can_delete"`
	CommentCount int64             `json:"comment_count"`
	Comments     []CommentResponse `json:"comments,omitempty"`
}

type PageResponse struct {
	Items         []ProductResponse `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type SnapshotResponse struct {
	Seq uint64 `json:"seq"`
	PageResponse
}

// toProductResponse renders p for caller. is_by_creator, has_voted and
// can_delete are computed here on every read.
func toProductResponse(p *domain.Product, caller *domain.Caller) ProductResponse {
	res := ProductResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Company:      p.Company,
		URL:          p.URL,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		CreatedAt:    p.CreatedAt,
		Creator:      p.Creator,
		Votes:        p.Votes,
		VotedBy:      p.VotedBy,
		CanDelete:    authz.CanDelete(caller, p),
		CommentCount: p.CommentCount,
	}

	if res.VotedBy == nil {
		res.VotedBy = []string{}
	}

	if caller != nil {
		res.HasVoted = p.HasVoted(caller.ID)
	}

	if p.Comments != nil {
		res.Comments = make([]CommentResponse, 0, len(p.Comments))
		for _, c := range p.Comments {
			res.Comments = append(res.Comments, CommentResponse{
				ID:                c.ID,
				Message:           c.Message,
				AuthorID:          c.AuthorID,
				AuthorDisplayName: c.AuthorDisplayName,
				IsByCreator:       p.IsByCreator(c),
				CreatedAt:         c.CreatedAt,
			})
		}
	}

	return res
}

func toPageResponse(page listing.Page, caller *domain.Caller) PageResponse {
	items := make([]ProductResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toProductResponse(&page.Items[i], caller))
	}

	return PageResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	}
}
