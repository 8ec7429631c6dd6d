package httpapi

import (
	"net/http"

	"salonpos/backend/internal/domain"
)

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.Cart(r.Context(), a.session(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartAddLine(w http.ResponseWriter, r *http.Request) {
	var req domain.AddCartLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	view, err := a.service.AddCartLine(r.Context(), a.session(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCartLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	view, err := a.service.UpdateCartLine(r.Context(), a.session(r), r.PathValue("lineID"), req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.Discount
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	view, err := a.service.SetCartDiscount(r.Context(), a.session(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartTip(w http.ResponseWriter, r *http.Request) {
	var req domain.CartTipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	view, err := a.service.SetCartTip(r.Context(), a.session(r), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartParties(w http.ResponseWriter, r *http.Request) {
	var req domain.CartPartiesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	view, err := a.service.SetCartParties(r.Context(), a.session(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartReset(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ResetCart(r.Context(), a.session(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CartCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	if req.RegisterID == "" {
		req.RegisterID = a.register(r)
	}
	resp, err := a.service.CheckoutCart(r.Context(), a.session(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	if req.RegisterID == "" {
		req.RegisterID = a.register(r)
	}
	resp, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), r.PathValue("idOrReceipt"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleCashLedger(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.CashLedger(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleOpeningFloat(w http.ResponseWriter, r *http.Request) {
	var req domain.OpeningFloatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	entry, err := a.service.SetOpeningFloat(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleCashMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.CashMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	entry, err := a.service.RecordCashMovement(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := a.service.ListExpenses(r.Context(), query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	expense, err := a.service.RecordExpense(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleDayClosePreview(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.PreviewDayClose(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDayCloseFinalize(w http.ResponseWriter, r *http.Request) {
	var req domain.FinalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	resp, err := a.service.FinalizeDayClose(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReceiptSequence(w http.ResponseWriter, r *http.Request) {
	registerID := r.URL.Query().Get("register")
	if registerID == "" {
		registerID = a.register(r)
	}
	seq, err := a.service.ReceiptSequence(r.Context(), registerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (a *API) handleConfigureReceiptSequence(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceiptSequenceUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	if req.RegisterID == "" {
		req.RegisterID = a.register(r)
	}
	seq, err := a.service.ConfigureReceiptSequence(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (a *API) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonInvalidRequest, err)
		return
	}
	productID := r.PathValue("productID")
	if err := a.service.SetStock(r.Context(), productID, req.Qty); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "product_id": productID, "qty": req.Qty})
}
