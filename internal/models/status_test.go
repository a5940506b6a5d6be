package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-bookworks/internal/models"
)

func TestCanTransition_ForwardOnly(t *testing.T) {
	steps := []models.OrderStatus{
		models.StatusCreated,
		models.StatusAwaitingPayment,
		models.StatusPaid,
		models.StatusThanked,
		models.StatusAssetsText,
		models.StatusAssetsIllustration,
		models.StatusAssetsMerge,
		models.StatusReadyForDelivery,
		models.StatusDelivered,
		models.StatusCompleted,
	}

	for i := 0; i < len(steps)-1; i++ {
		assert.True(t, models.CanTransition(steps[i], steps[i+1]),
			"expected %s -> %s to be legal", steps[i], steps[i+1])
		// Backwards is never legal.
		assert.False(t, models.CanTransition(steps[i+1], steps[i]),
			"expected %s -> %s to be illegal", steps[i+1], steps[i])
	}

	// Skipping a step is never legal.
	assert.False(t, models.CanTransition(models.StatusPaid, models.StatusAssetsText))
	assert.False(t, models.CanTransition(models.StatusCreated, models.StatusPaid))
}

func TestCanTransition_SideExits(t *testing.T) {
	assert.True(t, models.CanTransition(models.StatusAwaitingPayment, models.StatusCanceled))
	assert.False(t, models.CanTransition(models.StatusPaid, models.StatusCanceled))
	assert.False(t, models.CanTransition(models.StatusCreated, models.StatusCanceled))

	assert.True(t, models.CanTransition(models.StatusPaid, models.StatusError))
	assert.True(t, models.CanTransition(models.StatusDelivered, models.StatusError))
	assert.False(t, models.CanTransition(models.StatusCompleted, models.StatusError))
	assert.False(t, models.CanTransition(models.StatusCanceled, models.StatusError))
}

func TestCanTransition_TerminalStatuses(t *testing.T) {
	for _, terminal := range []models.OrderStatus{models.StatusCompleted, models.StatusCanceled} {
		for _, to := range []models.OrderStatus{
			models.StatusCreated, models.StatusPaid, models.StatusDelivered,
			models.StatusCompleted, models.StatusCanceled, models.StatusError,
		} {
			assert.False(t, models.CanTransition(terminal, to),
				"expected %s -> %s to be illegal", terminal, to)
		}
	}
}

func TestBaseIllustration(t *testing.T) {
	page := models.TemplatePage{
		IllustrationBoyLight:  "bl.png",
		IllustrationBoyDark:   "bd.png",
		IllustrationGirlLight: "gl.png",
		IllustrationGirlDark:  "gd.png",
	}

	assert.Equal(t, "bl.png", page.BaseIllustration(models.GenderBoy, models.SkinToneLight))
	assert.Equal(t, "bd.png", page.BaseIllustration(models.GenderBoy, models.SkinToneDark))
	assert.Equal(t, "gl.png", page.BaseIllustration(models.GenderGirl, models.SkinToneLight))
	assert.Equal(t, "gd.png", page.BaseIllustration(models.GenderGirl, models.SkinToneDark))
	assert.Equal(t, "", page.BaseIllustration("robot", models.SkinToneLight))
}
