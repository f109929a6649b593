package content

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// offerPatterns maps offer types to their recognizers. All are scanned;
// a message may carry several offer types.
var offerPatterns = map[string][]*regexp.Regexp{
	domain.OfferDiscount: {
		regexp.MustCompile(`(?i)\b\d{1,2}%\s*off\b`),
		regexp.MustCompile(`(?i)\b(discount|coupon|promo code|sale ends)\b`),
	},
	domain.OfferFreeTrial: {
		regexp.MustCompile(`(?i)\bfree trial\b`),
		regexp.MustCompile(`(?i)\btry (it|us|.{1,20}) free\b`),
		regexp.MustCompile(`(?i)\bno credit card\b`),
	},
	domain.OfferWebinar: {
		regexp.MustCompile(`(?i)\b(webinar|live session|live demo|masterclass)\b`),
	},
	domain.OfferProductLaunch: {
		regexp.MustCompile(`(?i)\b(introducing|now available|just launched|new feature)\b`),
	},
	domain.OfferUrgency: {
		regexp.MustCompile(`(?i)\b(last chance|ends (today|tonight|soon)|limited time|don'?t miss|expires)\b`),
		regexp.MustCompile(`(?i)\bonly \d+ (left|spots|seats)\b`),
	},
	domain.OfferSocialProof: {
		regexp.MustCompile(`(?i)\b(join \d+[,\d]*\+? |trusted by|customers? love|case study|testimonial)\b`),
	},
	domain.OfferEvent: {
		regexp.MustCompile(`(?i)\b(conference|summit|meetup|register now|save your seat|rsvp)\b`),
	},
	domain.OfferNewsletter: {
		regexp.MustCompile(`(?i)\b(newsletter|this week in|weekly digest|roundup|issue #?\d+)\b`),
	},
	domain.OfferRenewal: {
		regexp.MustCompile(`(?i)\b(renew(al|s)?|subscription (expires|ending)|plan (expires|renews))\b`),
	},
	domain.OfferPartnership: {
		regexp.MustCompile(`(?i)\b(partner program|affiliate|referral program|become a partner|reseller)\b`),
	},
	domain.OfferProcurement: {
		regexp.MustCompile(`(?i)\b(rfp|request for proposal|vendor (assessment|onboarding)|procurement|security questionnaire)\b`),
	},
}

func detectOffers(text string) []string {
	var out []string
	for offer, patterns := range offerPatterns {
		for _, re := range patterns {
			if re.MatchString(text) {
				out = append(out, offer)
				break
			}
		}
	}
	return out
}

var personalizationTokenRes = []*regexp.Regexp{
	regexp.MustCompile(`%%[A-Za-z_]+%%`),
	regexp.MustCompile(`\{\{\s*[A-Za-z_.]+\s*\}\}`),
	regexp.MustCompile(`\*\|[A-Z_]+\|\*`),
}

func detectPersonalization(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range personalizationTokenRes {
		for _, tok := range re.FindAllString(text, -1) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// linkIntentTable is the ordered substring table. First match wins per
// URL; unmatched links carry no intent.
var linkIntentTable = []struct {
	intent     string
	substrings []string
}{
	{domain.LinkIntentPricing, []string{"/pricing", "/plans", "plans-and-pricing"}},
	{domain.LinkIntentDemo, []string{"/demo", "calendly.com", "/book", "savvycal.com", "/schedule", "meetings.hubspot.com"}},
	{domain.LinkIntentPartner, []string{"/partner", "/affiliate", "/referral", "partnerstack.com", "/resellers"}},
	{domain.LinkIntentMarketplace, []string{"marketplace.", "/marketplace", "appexchange", "/integrations/"}},
	{domain.LinkIntentJobPosting, []string{"/careers", "/jobs", "greenhouse.io", "lever.co", "workable.com"}},
	{domain.LinkIntentCaseStudy, []string{"/case-stud", "/customers/", "/success-stor"}},
	{domain.LinkIntentFreeTool, []string{"/free-", "/tools/", "/calculator", "/generator", "/templates/"}},
}

func classifyLinkIntents(links []linkInfo) map[string][]string {
	out := map[string][]string{}
	for _, l := range links {
		lower := strings.ToLower(l.Href)
		for _, row := range linkIntentTable {
			matched := false
			for _, sub := range row.substrings {
				if strings.Contains(lower, sub) {
					out[row.intent] = append(out[row.intent], l.Href)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}
	return out
}

var socialHosts = map[string]string{
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"youtube.com":   "youtube",
}

func extractLinkFacts(links []linkInfo) (uniqueHosts []string, social map[string]string, utms []string) {
	hostSeen := map[string]bool{}
	utmSeen := map[string]bool{}
	social = map[string]string{}

	for _, l := range links {
		u, err := url.Parse(l.Href)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
		if !hostSeen[host] {
			hostSeen[host] = true
			uniqueHosts = append(uniqueHosts, host)
		}
		if platform, ok := socialHosts[host]; ok {
			if _, exists := social[platform]; !exists {
				social[platform] = l.Href
			}
		}
		if c := u.Query().Get("utm_campaign"); c != "" && !utmSeen[c] {
			utmSeen[c] = true
			utms = append(utms, c)
		}
	}
	return uniqueHosts, social, utms
}

// physicalAddressRe matches US street addresses of the CAN-SPAM footer
// variety: number, street, city, state code, zip.
var physicalAddressRe = regexp.MustCompile(
	`\d{1,5}\s+[A-Za-z0-9 .']{3,40}(St|Street|Ave|Avenue|Blvd|Boulevard|Rd|Road|Dr|Drive|Ln|Lane|Way|Suite|Ste|Floor)\b[^,\n]{0,30},?\s*[A-Za-z .]{2,25},?\s*[A-Z]{2}\s+\d{5}`)

func findPhysicalAddress(text string) string {
	return strings.TrimSpace(physicalAddressRe.FindString(text))
}

// templateComplexity scores how engineered the HTML template is, 0..100.
func templateComplexity(a *htmlAnalysis, personalized bool) int {
	score := 0
	score += capInt(a.TableCount*5, 25)
	score += capInt(a.StyledCount*2, 20)
	if a.HasMediaQuery {
		score += 15
	}
	score += capInt(a.ImageCount*3, 15)
	score += capInt(len(a.Links)*2, 15)
	if personalized {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
