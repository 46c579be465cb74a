package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/gallery"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/objectstore"
)

// ImageService is the image side of the API.
type ImageService interface {
	List(ctx context.Context) domain.GalleryData
	Upload(ctx context.Context, up gallery.Upload) (domain.GalleryImage, error)
	Register(ctx context.Context, meta domain.NewImage) (domain.GalleryImage, error)
	Update(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// LinkService is the link side of the API.
type LinkService interface {
	List(ctx context.Context) ([]domain.Link, error)
	Create(ctx context.Context, in domain.LinkInput) (domain.Link, error)
	Update(ctx context.Context, id int, in domain.LinkInput) (domain.Link, error)
	Delete(ctx context.Context, id int) error
	Reorder(ctx context.Context, ids []int) ([]domain.Link, error)
}

// Authenticator checks the admin secret.
type Authenticator interface {
	Check(password string) bool
	CheckHeader(header string) bool
}

// OrphanFinder lists bucket objects no image points to.
type OrphanFinder interface {
	FindOrphans(ctx context.Context) ([]objectstore.Object, error)
}

// Pinger is implemented by every backend readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access readyz and metrics
	TrustProxy   bool     // true if running behind a trusted reverse proxy
	CORSOrigins  []string // browser origins allowed to call /api

	MaxUploadBytes   int64 // multipart image size limit
	AuthBurst        int   // login attempts per IP in a burst
	AuthRefillPerMin int   // login attempts refilled per minute

	Images  ImageService
	Links   LinkService
	Auth    Authenticator
	Orphans OrphanFinder // nil disables GET /api/admin/orphans

	Postgres Pinger
	Redis    Pinger // nil when the response cache is disabled

	ReseedTrigger chan struct{} // nil when no seed file is configured
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
