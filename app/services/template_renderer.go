// Package services contains external-facing service clients and rendering used by the business flows
package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
)

// TemplateRenderer produces the final signature HTML for a user. Rendering
// must be deterministic: the same user, template and banner always yield
// byte-identical output, because the sync engine hashes it for idempotence.
type TemplateRenderer interface {
	Render(ctx context.Context, user *models.DirectoryUser, template *models.SignatureTemplate, banner *models.CampaignBanner) (string, error)
}

// PlaceholderTemplateRenderer substitutes {{placeholder}} tokens in the
// template HTML with escaped user attributes
type PlaceholderTemplateRenderer struct{}

// NewPlaceholderTemplateRenderer creates a new placeholder renderer
func NewPlaceholderTemplateRenderer() TemplateRenderer {
	return &PlaceholderTemplateRenderer{}
}

// Render expands the template for the user and appends the campaign banner
// block when one applies
func (r *PlaceholderTemplateRenderer) Render(_ context.Context, user *models.DirectoryUser, template *models.SignatureTemplate, banner *models.CampaignBanner) (string, error) {
	if user == nil {
		return "", fmt.Errorf("render: user is nil")
	}
	if template == nil || strings.TrimSpace(template.HTML) == "" {
		return "", fmt.Errorf("render: template HTML is empty")
	}

	replacer := strings.NewReplacer(
		"{{first_name}}", html.EscapeString(user.FirstName),
		"{{last_name}}", html.EscapeString(user.LastName),
		"{{full_name}}", html.EscapeString(user.FullName()),
		"{{email}}", html.EscapeString(user.PrimaryEmail),
		"{{job_title}}", html.EscapeString(deref(user.JobTitle)),
		"{{phone}}", html.EscapeString(deref(user.Phone)),
		"{{department}}", html.EscapeString(deref(user.Department)),
	)
	out := replacer.Replace(template.HTML)

	if banner != nil {
		out += renderBanner(banner)
	}
	return out, nil
}

// renderBanner emits the campaign banner block appended below the signature
func renderBanner(banner *models.CampaignBanner) string {
	var b strings.Builder
	b.WriteString(`<div class="campaign-banner">`)
	if banner.Link != nil && *banner.Link != "" {
		fmt.Fprintf(&b, `<a href="%s">`, html.EscapeString(*banner.Link))
	}
	alt := ""
	if banner.AltText != nil {
		alt = *banner.AltText
	}
	fmt.Fprintf(&b, `<img src="%s" alt="%s"/>`, html.EscapeString(banner.URL), html.EscapeString(alt))
	if banner.Link != nil && *banner.Link != "" {
		b.WriteString(`</a>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CachedTemplateRenderer fronts a renderer with a Redis cache keyed on the
// inputs that determine the output. A cache miss or Redis outage falls back
// to rendering; the cache is an optimization, never a source of truth.
type CachedTemplateRenderer struct {
	inner TemplateRenderer
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedTemplateRenderer creates a renderer backed by a Redis cache
func NewCachedTemplateRenderer(inner TemplateRenderer, client *redis.Client, ttl time.Duration) TemplateRenderer {
	if ttl <= 0 {
		ttl = utils.RenderCacheTTL
	}
	return &CachedTemplateRenderer{
		inner: inner,
		redis: client,
		ttl:   ttl,
	}
}

// Render returns the cached rendering when present, otherwise renders and
// stores the result
func (r *CachedTemplateRenderer) Render(ctx context.Context, user *models.DirectoryUser, template *models.SignatureTemplate, banner *models.CampaignBanner) (string, error) {
	key := r.cacheKey(user, template, banner)
	if cached, err := r.redis.Get(ctx, key).Result(); err == nil {
		return cached, nil
	}

	out, err := r.inner.Render(ctx, user, template, banner)
	if err != nil {
		return "", err
	}

	// Best effort; a failed SET only costs a re-render next cycle
	r.redis.Set(ctx, key, out, r.ttl)
	return out, nil
}

// cacheKey covers every input that can change the rendered output: the user's
// attributes and both rows' update times
func (r *CachedTemplateRenderer) cacheKey(user *models.DirectoryUser, template *models.SignatureTemplate, banner *models.CampaignBanner) string {
	var bannerPart string
	if banner != nil {
		bannerPart = fmt.Sprintf("%d:%s:%s:%s", banner.CampaignID, banner.URL, deref(banner.Link), deref(banner.AltText))
	}
	raw := fmt.Sprintf("%d:%d:%d:%d:%s:%s:%s:%s:%s:%s:%s",
		user.ID, user.UpdatedAt.UnixNano(),
		template.ID, template.UpdatedAt.UnixNano(),
		user.FirstName, user.LastName, user.PrimaryEmail,
		deref(user.JobTitle), deref(user.Phone), deref(user.Department),
		bannerPart,
	)
	return utils.RenderCacheKeyPrefix + ":" + utils.HashContent(raw)
}
