package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asl19/go-paskoocheh/api"
	"github.com/asl19/go-paskoocheh/playstore"
	"github.com/asl19/go-paskoocheh/util"
)

func main() {

	if util.DebugEnabled() {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <email> <password>\n", os.Args[0])
		os.Exit(2)
	}
	email, password := os.Args[1], os.Args[2]

	transport := api.New(api.WithTimeout(15 * time.Second))

	keys := playstore.NewKeyService(transport)
	dispenser := playstore.NewTokenDispenser(transport, keys).
		SetCredentials(email, password)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	outcome, err := dispenser.GetToken(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("token request failed")
	}

	switch outcome.Kind {
	case playstore.OutcomeToken:
		fmt.Println(outcome.Token)
	case playstore.OutcomeChallenge:
		fmt.Println("additional verification required:")
		fmt.Println(outcome.Challenge.URL)
	default:
		logrus.WithFields(logrus.Fields{
			"code": outcome.Err.Code,
			"raw":  outcome.Err.Raw,
		}).Fatal("authentication rejected")
	}
}
