package constants

// NoMatchCode is the reserved package_code meaning no candidate fits the case.
const NoMatchCode = "NO_MATCH"

// DefaultCandidateLimit caps the candidate list handed to the reasoning stage.
const DefaultCandidateLimit = 30

// Ranking policies for candidate retrieval.
const (
	RankingDiscovery = "discovery" // first matches in corpus order
	RankingHits      = "hits"      // most distinct keyword hits first
)

// ServiceName is reported by health endpoints.
const ServiceName = "MediClaim AI API"

// DefaultAllowedOrigins are the browser origins the HTTP API accepts out of the box.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://mediclaim-ai-one.vercel.app",
	"https://mediclaim-ai.vercel.app",
}
