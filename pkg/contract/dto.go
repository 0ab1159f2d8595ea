// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package contract

// Money is a decimal amount in a currency. Amounts are carried as decimal
// strings so no precision is lost crossing into a plugin runtime.
type Money struct {
	Amount       string `mapstructure:"amount" json:"amount"`
	CurrencyCode string `mapstructure:"currency_code" json:"currency_code"`
}

// OrderContext describes the order a payment operation belongs to.
type OrderContext struct {
	OrderNumber   string `mapstructure:"order_number" json:"order_number"`
	CustomerEmail string `mapstructure:"customer_email" json:"customer_email,omitempty"`
	Total         Money  `mapstructure:"total" json:"total"`
}

// RequestContext is embedded in every capability request.
type RequestContext struct {
	PluginConfigData  map[string]string `mapstructure:"plugin_config_data" json:"plugin_config_data,omitempty"`
	CustomRequestData map[string]string `mapstructure:"custom_request_data" json:"custom_request_data,omitempty"`
	OrderContext      OrderContext      `mapstructure:"order_context" json:"order_context"`
}

// ReserveRequest asks a plugin to reserve Amount on an instrument.
type ReserveRequest struct {
	RequestContext `mapstructure:",squash"`
	Amount         Money             `mapstructure:"amount" json:"amount"`
	InstrumentData map[string]string `mapstructure:"instrument_data" json:"instrument_data,omitempty"`
}

// ModifyRequest asks a plugin to change a reservation to Amount.
type ModifyRequest struct {
	RequestContext  `mapstructure:",squash"`
	Amount          Money             `mapstructure:"amount" json:"amount"`
	ReservationData map[string]string `mapstructure:"reservation_data" json:"reservation_data,omitempty"`
}

// CancelRequest asks a plugin to release a reservation.
type CancelRequest struct {
	RequestContext  `mapstructure:",squash"`
	Amount          Money             `mapstructure:"amount" json:"amount"`
	ReservationData map[string]string `mapstructure:"reservation_data" json:"reservation_data,omitempty"`
}

// ChargeRequest asks a plugin to capture Amount from a reservation.
type ChargeRequest struct {
	RequestContext  `mapstructure:",squash"`
	Amount          Money             `mapstructure:"amount" json:"amount"`
	ReservationData map[string]string `mapstructure:"reservation_data" json:"reservation_data,omitempty"`
}

// ReverseChargeRequest asks a plugin to reverse a charge.
type ReverseChargeRequest struct {
	RequestContext `mapstructure:",squash"`
	ChargeData     map[string]string `mapstructure:"charge_data" json:"charge_data,omitempty"`
}

// CreditRequest asks a plugin to refund Amount of a charge.
type CreditRequest struct {
	RequestContext `mapstructure:",squash"`
	Amount         Money             `mapstructure:"amount" json:"amount"`
	ChargeData     map[string]string `mapstructure:"charge_data" json:"charge_data,omitempty"`
}

// CapabilityResponse is returned by every money-moving capability.
type CapabilityResponse struct {
	Data              map[string]string `mapstructure:"data" json:"data,omitempty"`
	ProcessedDateTime string            `mapstructure:"processed_date_time" json:"processed_date_time,omitempty"`
	RequestHold       bool              `mapstructure:"request_hold" json:"request_hold,omitempty"`
}

// CustomerContext identifies the customer creating an instrument.
type CustomerContext struct {
	UserID    string `mapstructure:"user_id" json:"user_id"`
	FirstName string `mapstructure:"first_name" json:"first_name,omitempty"`
	LastName  string `mapstructure:"last_name" json:"last_name,omitempty"`
	Email     string `mapstructure:"email" json:"email,omitempty"`
}

// PICFieldsRequest asks which fields instrument creation needs.
type PICFieldsRequest struct {
	PluginConfigData map[string]string `mapstructure:"plugin_config_data" json:"plugin_config_data,omitempty"`
	Customer         CustomerContext   `mapstructure:"customer" json:"customer"`
	CurrencyCode     string            `mapstructure:"currency_code" json:"currency_code,omitempty"`
}

// PICFields lists the fields a customer must supply.
type PICFields struct {
	Fields            []string `mapstructure:"fields" json:"fields"`
	SaveableToProfile bool     `mapstructure:"saveable_to_profile" json:"saveable_to_profile,omitempty"`
}

// PICRequest creates a payment instrument from submitted form data.
type PICRequest struct {
	PluginConfigData map[string]string `mapstructure:"plugin_config_data" json:"plugin_config_data,omitempty"`
	FormData         map[string]string `mapstructure:"form_data" json:"form_data,omitempty"`
	Customer         CustomerContext   `mapstructure:"customer" json:"customer"`
}

// PICResponse carries the created instrument.
type PICResponse struct {
	Details map[string]string `mapstructure:"details" json:"details,omitempty"`
}

// PICInstructionsFields lists the fields the client interaction needs.
type PICInstructionsFields struct {
	Fields []string `mapstructure:"fields" json:"fields"`
}

// PICInstructionsRequest requests client interaction instructions from
// submitted form data.
type PICInstructionsRequest struct {
	PluginConfigData map[string]string `mapstructure:"plugin_config_data" json:"plugin_config_data,omitempty"`
	FormData         map[string]string `mapstructure:"form_data" json:"form_data,omitempty"`
	Customer         CustomerContext   `mapstructure:"customer" json:"customer"`
}

// PICInstructions tells the client how to reach the provider. Payload is
// passed back when the instrument is created.
type PICInstructions struct {
	CommunicationInstructions map[string]string `mapstructure:"communication_instructions" json:"communication_instructions,omitempty"`
	Payload                   map[string]string `mapstructure:"payload" json:"payload,omitempty"`
}
