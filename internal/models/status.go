package models

// OrderStatus is the single source of truth for an order's pipeline position.
type OrderStatus string

const (
	StatusCreated            OrderStatus = "created"
	StatusAwaitingPayment    OrderStatus = "awaiting_payment"
	StatusPaid               OrderStatus = "paid"
	StatusThanked            OrderStatus = "thanked"
	StatusAssetsText         OrderStatus = "created_assets_text"
	StatusAssetsIllustration OrderStatus = "created_assets_illustration"
	StatusAssetsMerge        OrderStatus = "created_assets_merge"
	StatusReadyForDelivery   OrderStatus = "ready_for_delivery"
	StatusDelivered          OrderStatus = "delivered"
	StatusCompleted          OrderStatus = "completed"
	StatusCanceled           OrderStatus = "canceled"
	StatusError              OrderStatus = "error"
)

// statusOrder is the strict forward sequence of the pipeline.
var statusOrder = []OrderStatus{
	StatusCreated,
	StatusAwaitingPayment,
	StatusPaid,
	StatusThanked,
	StatusAssetsText,
	StatusAssetsIllustration,
	StatusAssetsMerge,
	StatusReadyForDelivery,
	StatusDelivered,
	StatusCompleted,
}

// Rank returns the position of a status in the forward sequence, or -1 for
// the side-exit statuses (canceled, error) and unknown values.
func (s OrderStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether from → to is a legal transition: exactly one
// step forward, or a side exit into canceled/error.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusError {
		return from != StatusCompleted && from != StatusCanceled
	}
	if to == StatusCanceled {
		return from == StatusAwaitingPayment
	}
	fromRank := from.Rank()
	toRank := to.Rank()
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank == fromRank+1
}
