package config_test

import (
	"context"
	"fmt"

	"github.com/sagarc03/satchel/config"
)

func ExampleLoad() {
	cfg, err := config.Load(nil, nil)
	if err != nil {
		panic(err)
	}

	policy := cfg.Archive.Policy()
	fmt.Println("port:", cfg.Server.Port)
	fmt.Println("archives enabled:", policy.Enabled)
	fmt.Println("max input:", cfg.Archive.MaxInputSize)
	// Output:
	// port: 5709
	// archives enabled: true
	// max input: 800 MiB
}

func ExampleByteSize_String() {
	fmt.Println(config.ByteSize(0))
	fmt.Println(config.ByteSize(5 << 30))
	// Output:
	// unlimited
	// 5.0 GiB
}

func ExampleFromContext() {
	cfg, _ := config.Load(nil, nil)
	ctx := config.WithContext(context.Background(), cfg)

	got, err := config.FromContext(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println(got.Database.Type, got.Database.Tables.Downloads)
	// Output: sqlite satchel_downloads
}
