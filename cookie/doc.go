// Package cookie implements the signed bearer-cookie issuer and verifier
// that carries a flow's correlated session token between requests.
//
// # Trust model
//
// A bearer cookie is a pointer into a server-side flow token record, not a
// credential on its own. The signature proves authorship and the expiry
// bounds replay in time, but only the Engine's re-check of the embedded
// token against the secret store proves liveness. [Issuer.Verify] therefore
// authenticates the blob and nothing more; callers MUST validate the token
// claim against the flow token store before acting on it.
//
// # Payload shape
//
// Each purpose gets a tagged, fixed-field claim set ([Claims]) rather than a
// schemaless map, so a cookie minted for one flow can never be interpreted
// as another flow's payload: the purpose tag is checked on every verify.
package cookie
