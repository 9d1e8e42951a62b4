package guardrails

// DefaultProfanityTerms is used when settings do not supply a profanity list
var DefaultProfanityTerms = []string{
	"damn", "shit", "fuck", "ass", "bitch", "bastard", "crap", "hell",
	"wtf", "stfu", "lmao", "lmfao",
}

// DefaultCommitmentPhrases is used when settings do not supply commitment phrases.
// A reply containing one of these could bind the owner to something they never agreed to.
var DefaultCommitmentPhrases = []string{
	"i agree", "i accept", "i confirm", "i approve",
	"confirmed", "approved", "accepted", "agreed",
	"i'll pay", "i will pay", "i'll send the money", "i will send the money",
	"you have my word", "you have my permission", "you have my approval",
	"deal",
	"i commit", "i promise", "i guarantee",
	"legally binding", "binding", "contractually",
}
