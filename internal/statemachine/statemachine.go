// Package statemachine is the single authority on legal campaign and
// message transitions (C4). Both the dispatcher and the command
// service route their writes through it so neither can apply a
// transition the other would reject.
package statemachine

import (
	"github.com/unclebandit/campaign-dispatcher/internal/apperrors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

var campaignTransitions = map[model.CampaignStatus]map[model.CampaignStatus]bool{
	model.CampaignScheduled: {
		model.CampaignProcessing: true,
		model.CampaignPaused:     true,
		model.CampaignCanceled:   true,
	},
	model.CampaignPending: {
		model.CampaignProcessing: true,
		model.CampaignPaused:     true,
		model.CampaignCanceled:   true,
	},
	model.CampaignProcessing: {
		model.CampaignPaused:   true,
		model.CampaignCanceled: true,
		model.CampaignFinished: true,
		model.CampaignFailed:   true,
	},
	model.CampaignActive: {
		model.CampaignProcessing: true,
		model.CampaignPaused:     true,
		model.CampaignCanceled:   true,
		model.CampaignFinished:   true,
		model.CampaignFailed:     true,
	},
	model.CampaignPaused: {
		model.CampaignActive:   true,
		model.CampaignCanceled: true,
	},
}

// CanTransitionCampaign reports whether from -> to is a legal
// campaign transition per spec.md §4.4.
func CanTransitionCampaign(from, to model.CampaignStatus) bool {
	if from == to {
		return true // idempotent no-op, see L2
	}
	next, ok := campaignTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// TransitionCampaign validates and returns the new status, or an
// InvalidTransition error.
func TransitionCampaign(from, to model.CampaignStatus) (model.CampaignStatus, error) {
	if !CanTransitionCampaign(from, to) {
		return from, apperrors.NewInvalidTransition("campaign", string(from), string(to))
	}
	return to, nil
}

var messageTransitions = map[model.MessageStatus]map[model.MessageStatus]bool{
	model.MessageWaiting: {model.MessageSending: true},
	model.MessageSending: {model.MessageSent: true, model.MessageFailed: true},
	model.MessageFailed:  {model.MessageWaiting: true}, // retry command, the only legal target
}

// CanTransitionMessage reports whether from -> to is legal per §4.4.
func CanTransitionMessage(from, to model.MessageStatus) bool {
	if from == to {
		return true
	}
	next, ok := messageTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionMessage(from, to model.MessageStatus) (model.MessageStatus, error) {
	if !CanTransitionMessage(from, to) {
		return from, apperrors.NewInvalidTransition("message", string(from), string(to))
	}
	return to, nil
}
