package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearsign-io/clearsign/utils"
)

func TestCampaignStatusValid(t *testing.T) {
	for _, s := range []CampaignStatus{
		CampaignStatusScheduled, CampaignStatusActive,
		CampaignStatusCompleted, CampaignStatusCancelled,
	} {
		assert.True(t, s.Valid(), s.String())
	}
	assert.False(t, CampaignStatus("paused").Valid())
}

func TestCampaignTargetTypeValid(t *testing.T) {
	for _, tt := range []CampaignTargetType{
		CampaignTargetOrganization, CampaignTargetGroup, CampaignTargetDepartment,
	} {
		assert.True(t, tt.Valid())
	}
	assert.False(t, CampaignTargetType("user").Valid())
}

func TestCampaignBanner(t *testing.T) {
	t.Run("CarriesOverlayFields", func(t *testing.T) {
		campaign := &BannerCampaign{
			ID:            7,
			BannerURL:     "https://cdn.acme.test/spring.png",
			BannerLink:    utils.ToPtr("https://acme.test/spring"),
			BannerAltText: utils.ToPtr("Spring Launch"),
		}
		banner := campaign.Banner()
		require.NotNil(t, banner)
		assert.Equal(t, uint(7), banner.CampaignID)
		assert.Equal(t, "https://cdn.acme.test/spring.png", banner.URL)
		assert.Equal(t, "https://acme.test/spring", *banner.Link)
		assert.Equal(t, "Spring Launch", *banner.AltText)
	})

	t.Run("NilCampaign", func(t *testing.T) {
		var campaign *BannerCampaign
		assert.Nil(t, campaign.Banner())
	})
}
