package ports

// Actor roles carried in the auth token issued by the marketplace's identity
// service. The ledger never issues tokens, it only verifies them.
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
)

// ActorClaims identifies the authenticated caller.
type ActorClaims struct {
	ActorID string
	Role    string
}

// ActorTokenService verifies bearer tokens from the identity service.
type ActorTokenService interface {
	Verify(tokenString string) (*ActorClaims, error)
}
