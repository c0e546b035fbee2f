// Package xumm provides a client for the XUMM platform API
// Based on the XUMM developer API (REST + payload status WebSocket)
package xumm

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// CancelReason is the platform's reason for a cancel outcome
type CancelReason string

const (
	CancelReasonOK               CancelReason = "OK"
	CancelReasonAlreadyCancelled CancelReason = "ALREADY_CANCELLED"
	CancelReasonAlreadyResolved  CancelReason = "ALREADY_RESOLVED"
	CancelReasonAlreadyOpened    CancelReason = "ALREADY_OPENED"
	CancelReasonAlreadyExpired   CancelReason = "ALREADY_EXPIRED"
)

// QRQuality is a QR code error correction level
type QRQuality string

const (
	QRQualityMedium   QRQuality = "m"
	QRQualityQuartile QRQuality = "q"
	QRQualityHigh     QRQuality = "h"
)

// Transaction is a JSON transaction template. It must carry TransactionType.
type Transaction map[string]any

// Type returns the TransactionType field, or "" when absent
func (t Transaction) Type() string {
	s, _ := t["TransactionType"].(string)
	return s
}

// CustomMeta is application-defined metadata attached to a payload
type CustomMeta struct {
	Identifier  *string        `json:"identifier,omitempty"`
	Blob        map[string]any `json:"blob,omitempty"`
	Instruction *string        `json:"instruction,omitempty"`
}

// ReturnURL holds the app/web redirect targets after signing
type ReturnURL struct {
	App string `json:"app,omitempty"`
	Web string `json:"web,omitempty"`
}

// PayloadOptions are delivery and signing options for a new payload
type PayloadOptions struct {
	Submit              *bool      `json:"submit,omitempty"`
	Pathfinding         *bool      `json:"pathfinding,omitempty"`
	PathfindingFallback *bool      `json:"pathfinding_fallback,omitempty"`
	Multisign           *bool      `json:"multisign,omitempty"`
	Expire              int        `json:"expire,omitempty"`
	Signers             []string   `json:"signers,omitempty"`
	ForceNetwork        string     `json:"force_network,omitempty"`
	ReturnURL           *ReturnURL `json:"return_url,omitempty"`
}

// CreatePayload is the request body for POST payload.
// Exactly one of TxJSON or TxBlob should be set.
type CreatePayload struct {
	TxJSON     Transaction     `json:"txjson,omitempty"`
	TxBlob     string          `json:"txblob,omitempty"`
	Options    *PayloadOptions `json:"options,omitempty"`
	CustomMeta *CustomMeta     `json:"custom_meta,omitempty"`
	UserToken  string          `json:"user_token,omitempty"`
}

// CreatedPayload is the response of a successful payload creation
type CreatedPayload struct {
	UUID string `json:"uuid"`
	Next struct {
		Always            string `json:"always"`
		NoPushMsgReceived string `json:"no_push_msg_received,omitempty"`
	} `json:"next"`
	Refs struct {
		QRPNG            string      `json:"qr_png"`
		QRMatrix         string      `json:"qr_matrix"`
		QRURIQualityOpts []QRQuality `json:"qr_uri_quality_opts"`
		WebsocketStatus  string      `json:"websocket_status"`
	} `json:"refs"`
	Pushed bool `json:"pushed"`
}

// PayloadMeta is the lifecycle section of a fetched payload
type PayloadMeta struct {
	Exists              bool     `json:"exists"`
	UUID                string   `json:"uuid"`
	Multisign           bool     `json:"multisign"`
	Submit              bool     `json:"submit"`
	Pathfinding         bool     `json:"pathfinding"`
	PathfindingFallback bool     `json:"pathfinding_fallback"`
	ForceNetwork        string   `json:"force_network,omitempty"`
	Destination         string   `json:"destination"`
	ResolvedDestination string   `json:"resolved_destination"`
	Resolved            bool     `json:"resolved"`
	Signed              bool     `json:"signed"`
	Cancelled           bool     `json:"cancelled"`
	Expired             bool     `json:"expired"`
	Pushed              bool     `json:"pushed"`
	AppOpened           bool     `json:"app_opened"`
	OpenedByDeeplink    *bool    `json:"opened_by_deeplink"`
	Immutable           bool     `json:"immutable,omitempty"`
	ForceAccount        bool     `json:"forceAccount,omitempty"`
	ReturnURLApp        *string  `json:"return_url_app"`
	ReturnURLWeb        *string  `json:"return_url_web"`
	IsXApp              bool     `json:"is_xapp"`
	Signers             []string `json:"signers"`
}

// PayloadApplication describes the application that created the payload
type PayloadApplication struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Disabled        int     `json:"disabled"`
	UUIDv4          string  `json:"uuidv4"`
	IconURL         string  `json:"icon_url"`
	IssuedUserToken *string `json:"issued_user_token"`
}

// PayloadRequest is the requested transaction section of a fetched payload
type PayloadRequest struct {
	TxType           string         `json:"tx_type"`
	TxDestination    string         `json:"tx_destination"`
	TxDestinationTag *int64         `json:"tx_destination_tag"`
	RequestJSON      Transaction    `json:"request_json"`
	OriginType       *string        `json:"origintype"`
	SignMethod       *string        `json:"signmethod"`
	CreatedAt        string         `json:"created_at"`
	ExpiresAt        string         `json:"expires_at"`
	ExpiresInSeconds int64          `json:"expires_in_seconds"`
	Computed         map[string]any `json:"computed,omitempty"`
}

// PayloadResponse is populated once the payload is resolved
type PayloadResponse struct {
	SignerPubkey         string  `json:"signer_pubkey,omitempty"`
	Hex                  *string `json:"hex"`
	TxID                 *string `json:"txid"`
	ResolvedAt           *string `json:"resolved_at"`
	DispatchedNodetype   *string `json:"dispatched_nodetype"`
	DispatchedTo         *string `json:"dispatched_to"`
	DispatchedResult     *string `json:"dispatched_result"`
	DispatchedToNode     *bool   `json:"dispatched_to_node"`
	EnvironmentNodeURI   *string `json:"environment_nodeuri"`
	EnvironmentNodetype  *string `json:"environment_nodetype"`
	EnvironmentNetworkID *int64  `json:"environment_networkid"`
	MultisignAccount     *string `json:"multisign_account"`
	Account              *string `json:"account"`
	Signer               *string `json:"signer"`
	ApprovedWith         string  `json:"approved_with,omitempty"`
	User                 *string `json:"user"`
}

// Payload is a fetched payload: the authoritative snapshot of its state
type Payload struct {
	Meta        PayloadMeta        `json:"meta"`
	Application PayloadApplication `json:"application"`
	Payload     PayloadRequest     `json:"payload"`
	Response    PayloadResponse    `json:"response"`
	CustomMeta  CustomMeta         `json:"custom_meta"`
}

// DeletedPayload is the response of a cancel request
type DeletedPayload struct {
	Result struct {
		Cancelled bool         `json:"cancelled"`
		Reason    CancelReason `json:"reason"`
	} `json:"result"`
	Meta       PayloadMeta `json:"meta"`
	CustomMeta CustomMeta  `json:"custom_meta"`
}

// ApplicationDetails is returned by ping
type ApplicationDetails struct {
	Quota       map[string]any `json:"quota"`
	Application struct {
		UUIDv4     string `json:"uuidv4"`
		Name       string `json:"name"`
		WebhookURL string `json:"webhookurl"`
		Disabled   int    `json:"disabled"`
	} `json:"application"`
	Call struct {
		UUIDv4 string `json:"uuidv4"`
	} `json:"call"`
}

// Pong is the raw ping response
type Pong struct {
	Pong bool                `json:"pong"`
	Auth *ApplicationDetails `json:"auth"`
}

// JWTPong is the ping response in the JWT flow
type JWTPong struct {
	Pong      bool   `json:"pong"`
	OTTUUIDv4 string `json:"ott_uuidv4"`
	AppUUIDv4 string `json:"app_uuidv4"`
	AppName   string `json:"app_name"`
	IAT       int64  `json:"iat"`
	Exp       int64  `json:"exp"`
}

// CuratedAsset is a single currency issued by a curated issuer
type CuratedAsset struct {
	ID        int    `json:"id"`
	IssuerID  int    `json:"issuer_id"`
	Currency  string `json:"currency"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Shortlist int    `json:"shortlist"`
}

// CuratedIssuer is a curated asset issuer
type CuratedIssuer struct {
	ID         int                     `json:"id"`
	Name       string                  `json:"name"`
	Domain     string                  `json:"domain,omitempty"`
	Avatar     string                  `json:"avatar,omitempty"`
	Shortlist  int                     `json:"shortlist"`
	Currencies map[string]CuratedAsset `json:"currencies"`
}

// CuratedAssetsResponse lists curated issuers and currencies
type CuratedAssetsResponse struct {
	Issuers    []string                 `json:"issuers"`
	Currencies []string                 `json:"currencies"`
	Details    map[string]CuratedIssuer `json:"details"`
}

// RatesResponse holds exchange rates for a fiat currency
type RatesResponse struct {
	USD  float64 `json:"USD"`
	XRP  float64 `json:"XRP"`
	Meta struct {
		Currency struct {
			En     string `json:"en"`
			Code   string `json:"code"`
			Symbol string `json:"symbol,omitempty"`
		} `json:"currency"`
	} `json:"__meta"`
}

// KycStatus is the KYC state of a user
type KycStatus string

const (
	KycStatusNone       KycStatus = "NONE"
	KycStatusInProgress KycStatus = "IN_PROGRESS"
	KycStatusRejected   KycStatus = "REJECTED"
	KycStatusSuccessful KycStatus = "SUCCESSFUL"
)

// KycStatusResponse is the response of a KYC status lookup
type KycStatusResponse struct {
	KycStatus        KycStatus            `json:"kycStatus"`
	PossibleStatuses map[KycStatus]string `json:"possibleStatuses"`
}

// KycInfoResponse is the public KYC info of an account
type KycInfoResponse struct {
	Account     string `json:"account"`
	KycApproved bool   `json:"kycApproved"`
}

// BalanceChange is one line of a transaction's balance changes
type BalanceChange struct {
	Counterparty string `json:"counterparty"`
	Currency     string `json:"currency"`
	Value        string `json:"value"`
}

// XrplTransaction is a ledger transaction looked up by hash
type XrplTransaction struct {
	TxID           string                     `json:"txid"`
	BalanceChanges map[string][]BalanceChange `json:"balanceChanges"`
	Node           string                     `json:"node"`
	Transaction    map[string]any             `json:"transaction"`
}

// UserTokenValidity reports whether an issued user token is still usable
type UserTokenValidity struct {
	UserToken string `json:"user_token"`
	Active    bool   `json:"active"`
	Issued    int64  `json:"issued,omitempty"`
	Expires   int64  `json:"expires,omitempty"`
}

// UserTokenResponse is the response of a user token verification
type UserTokenResponse struct {
	Tokens []UserTokenValidity `json:"tokens"`
}

// StorageResponse is the common part of every app-storage response
type StorageResponse struct {
	Application struct {
		Name   string `json:"name"`
		UUIDv4 string `json:"uuidv4"`
	} `json:"application"`
	Stored bool            `json:"stored"`
	Data   json.RawMessage `json:"data"`
}

// PushBody is the request body for push events and notifications
type PushBody struct {
	UserToken string         `json:"user_token"`
	Subtitle  string         `json:"subtitle,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// PushResponse is returned by the event and push endpoints
type PushResponse struct {
	Pushed bool   `json:"pushed"`
	UUID   string `json:"uuid,omitempty"`
}

// XAppAccountInfo describes the account an xApp was opened with
type XAppAccountInfo struct {
	Account         string  `json:"account"`
	Name            string  `json:"name,omitempty"`
	Domain          string  `json:"domain,omitempty"`
	Blocked         bool    `json:"blocked"`
	Source          string  `json:"source"`
	KycApproved     bool    `json:"kycApproved"`
	ProSubscription bool    `json:"proSubscription"`
	Slug            *string `json:"slug"`
	ProfileURL      *string `json:"profileUrl"`
	AccountSlug     *string `json:"accountSlug"`
	PayString       *string `json:"payString"`
}

// XAppOTTData is the context resolved from an xApp one-time token
type XAppOTTData struct {
	Locale        string          `json:"locale,omitempty"`
	Version       string          `json:"version,omitempty"`
	Account       string          `json:"account,omitempty"`
	AccountAccess string          `json:"accountaccess,omitempty"`
	AccountType   string          `json:"accounttype,omitempty"`
	Style         string          `json:"style,omitempty"`
	Origin        json.RawMessage `json:"origin,omitempty"`
	User          string          `json:"user"`
	AccountInfo   XAppAccountInfo `json:"account_info"`
	NodeType      string          `json:"nodetype,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Subscriptions []string        `json:"subscriptions,omitempty"`
}

// JWTAuthorization is the result of exchanging an OTT for a JWT
type JWTAuthorization struct {
	OTT XAppOTTData    `json:"ott"`
	App map[string]any `json:"app"`
	JWT string         `json:"jwt"`
}

// UserdataList is returned when listing userdata keys
type UserdataList struct {
	Operation string   `json:"operation"`
	Keys      []string `json:"keys"`
	Count     int      `json:"count"`
}

// UserdataGet is returned when retrieving userdata
type UserdataGet struct {
	Operation string                     `json:"operation"`
	Data      map[string]json.RawMessage `json:"data"`
	Keys      []string                   `json:"keys"`
	Count     int                        `json:"count"`
}

// UserdataPersist is returned when storing or removing userdata
type UserdataPersist struct {
	Operation string `json:"operation"`
	Persisted bool   `json:"persisted"`
}

// WebhookBody is the body the platform POSTs to an application's webhook URL
type WebhookBody struct {
	Meta struct {
		URL               string `json:"url"`
		ApplicationUUIDv4 string `json:"application_uuidv4"`
		PayloadUUIDv4     string `json:"payload_uuidv4"`
		OpenedByDeeplink  bool   `json:"opened_by_deeplink"`
	} `json:"meta"`
	CustomMeta      CustomMeta `json:"custom_meta"`
	PayloadResponse struct {
		PayloadUUIDv4       string    `json:"payload_uuidv4"`
		ReferenceCallUUIDv4 string    `json:"reference_call_uuidv4"`
		Signed              bool      `json:"signed"`
		UserToken           bool      `json:"user_token"`
		ReturnURL           ReturnURL `json:"return_url"`
		TxID                string    `json:"txid"`
	} `json:"payloadResponse"`
	UserToken *struct {
		UserToken       string `json:"user_token"`
		TokenIssued     int64  `json:"token_issued"`
		TokenExpiration int64  `json:"token_expiration"`
	} `json:"userToken"`
}

// ClientConfig holds the configuration for the XUMM client
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Flow      AuthFlow
	UserAgent string
	Timeout   time.Duration

	// TokenStore keeps the bearer token of the JWT flow. Defaults to an in-memory slot.
	TokenStore TokenStore
	// AuthFailureResolver is consulted when a JWT flow call fails fatally.
	AuthFailureResolver AuthFailureResolver

	Logger   *zap.Logger
	Observer Observer

	Subscription SubscriptionConfig
}

// SubscriptionConfig tunes the payload subscription engine
type SubscriptionConfig struct {
	// SubscribeDelay is waited before the first fetch, covering replication
	// lag. Zero means the default, a negative value disables it.
	SubscribeDelay       time.Duration
	KeepaliveInterval    time.Duration
	KeepaliveTimeout     time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts uint64
	HandshakeTimeout     time.Duration
}

const (
	DefaultBaseURL = "https://xumm.app/api/v1/"
	Version        = "0.3.0"
)

// DefaultSubscriptionConfig returns the engine timings used by the platform's own SDKs
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		SubscribeDelay:       100 * time.Millisecond,
		KeepaliveInterval:    2 * time.Second,
		KeepaliveTimeout:     10 * time.Second,
		ReconnectDelay:       2 * time.Second,
		MaxReconnectAttempts: 30,
		HandshakeTimeout:     10 * time.Second,
	}
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      DefaultBaseURL,
		Flow:         FlowAPISecret,
		Timeout:      30 * time.Second,
		Subscription: DefaultSubscriptionConfig(),
	}
}
