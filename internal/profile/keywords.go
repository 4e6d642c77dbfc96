package profile

// Keyword lists used for document classification, capability tag inference
// and the deterministic fallback score.
var itKeywords = []string{
	"software development", "cloud", "devops", "infrastructure", "database",
	"network", "system administration", "help desk", "data center",
	"virtualization", "migration", "integration", "automation", "api",
	"web development", "mobile", "agile", "kubernetes", "aws", "azure",
}

var cyberKeywords = []string{
	"cybersecurity", "information security", "zero trust", "penetration testing",
	"vulnerability", "incident response", "threat", "siem", "soc",
	"risk management", "compliance", "fisma", "fedramp", "nist", "rmf",
	"encryption", "identity management", "continuous monitoring", "ato",
}

// knownCertifications are normalized certification names recognized anywhere
// in the source documents, case-insensitively.
var knownCertifications = []string{
	"ISO 27001", "ISO 9001", "CMMI Level 3", "CMMI Level 5", "CMMC",
	"SOC 2", "FedRAMP", "CISSP", "CISM", "CEH", "Security+", "PMP", "ITIL",
	"8(a)", "HUBZone", "SDVOSB", "WOSB",
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "will": true, "shall": true, "must": true,
	"has": true, "have": true, "from": true, "all": true,
	"any": true, "our": true, "their": true, "its": true, "was": true,
	"were": true, "been": true, "being": true, "can": true, "may": true,
	"not": true, "but": true, "into": true, "such": true, "other": true,
	"more": true, "than": true, "per": true, "each": true, "upon": true,
	"including": true, "required": true, "requirements": true, "provide": true,
	"services": true, "contractor": true, "government": true,
}

// naicsSectors holds the valid two-digit NAICS sector prefixes, used to tell
// real codes apart from other six-digit numbers in free text.
var naicsSectors = map[string]bool{
	"11": true, "21": true, "22": true, "23": true,
	"31": true, "32": true, "33": true, "42": true,
	"44": true, "45": true, "48": true, "49": true,
	"51": true, "52": true, "53": true, "54": true,
	"55": true, "56": true, "61": true, "62": true,
	"71": true, "72": true, "81": true, "92": true,
}
