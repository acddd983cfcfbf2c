package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Pre-authentication counters carry no request-derived labels
	ChallengesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccgate_auth_challenge_total",
		Help: "Total number of challenges issued.",
	})

	VerifyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccgate_auth_verify_total",
		Help: "Total number of verification attempts.",
	})

	VerifySuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_auth_verify_success_total",
		Help: "Total number of successful verifications by member community.",
	}, []string{"community_id"})

	VerifyFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_auth_verify_failure_total",
		Help: "Total number of failed verifications by reason.",
	}, []string{"reason"})

	MembershipChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_membership_check_total",
		Help: "Total number of membership checks by result.",
	}, []string{"result"})

	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_upload_total",
		Help: "Total number of upload attempts.",
	}, []string{"community_id"})

	UploadSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_upload_success_total",
		Help: "Total number of successful uploads.",
	}, []string{"community_id"})

	UploadFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_upload_failure_total",
		Help: "Total number of failed uploads by reason.",
	}, []string{"reason"})

	UploadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccgate_upload_bytes_total",
		Help: "Total number of bytes stored.",
	})

	RateLimitExceededTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccgate_rate_limit_exceeded_total",
		Help: "Total number of protected operations denied by the rate limiter.",
	}, []string{"community_id"})

	NoncesReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccgate_nonces_reaped_total",
		Help: "Total number of expired nonces removed by the reaper.",
	})
)

// Register registers all collectors with reg.
// It should be called once at application startup.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		ChallengesTotal,
		VerifyTotal,
		VerifySuccessTotal,
		VerifyFailureTotal,
		MembershipChecksTotal,
		UploadsTotal,
		UploadSuccessTotal,
		UploadFailureTotal,
		UploadBytesTotal,
		RateLimitExceededTotal,
		NoncesReapedTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
