package usecase

import "github.com/fekuna/omnipos-sales-service/internal/model"

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusDraft:     {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed: {model.OrderStatusInvoiced, model.OrderStatusCancelled},
}

// canTransition reports whether from -> to is legal. Invoiced orders can be
// cancelled only when allowCancelInvoiced is set; stock is never given back.
func canTransition(from, to model.OrderStatus, allowCancelInvoiced bool) bool {
	if from == model.OrderStatusInvoiced && to == model.OrderStatusCancelled {
		return allowCancelInvoiced
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
