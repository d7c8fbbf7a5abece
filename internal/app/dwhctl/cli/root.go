// Copyright © 2020 Banzai Cloud
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"emperror.dev/errors"
	"github.com/MakeNowJust/heredoc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banzaicloud/dwhctl/internal/dwh"
)

// ErrWrongConfiguration is returned when the command line does not select exactly one action.
const ErrWrongConfiguration = errors.Sentinel("wrong configuration")

// Provisioner runs the warehouse lifecycle actions.
type Provisioner interface {
	Create(ctx context.Context) (*dwh.CreateResult, error)
	Delete(ctx context.Context) error
}

// ProvisionerFactory builds a Provisioner once the command line is parsed.
// Progress lines meant for the user go to out.
type ProvisionerFactory func(out io.Writer) (Provisioner, error)

type options struct {
	create bool
	delete bool
}

// NewRootCommand creates the dwhctl root command.
func NewRootCommand(name string, version string, newProvisioner ProvisionerFactory) *cobra.Command {
	options := options{}

	cmd := &cobra.Command{
		Use:   name + " --create|--delete",
		Short: "Provision an Amazon Redshift data warehouse",
		Long: heredoc.Doc(`
			Provision or tear down an Amazon Redshift cluster together with the IAM role
			it uses to read from S3 and the ingress rule that makes it reachable.

			Exactly one of --create or --delete must be given (case-insensitive).
		`),
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) > 0 || options.create == options.delete {
				color.New(color.FgRed).Fprintln(out, "wrong configuration!")

				return ErrWrongConfiguration
			}

			provisioner, err := newProvisioner(out)
			if err != nil {
				return err
			}

			if options.create {
				return runCreate(cmd.Context(), out, provisioner)
			}

			return runDelete(cmd.Context(), out, provisioner)
		},
	}

	flags := cmd.Flags()

	flags.BoolVar(&options.create, "create", false, "Create the IAM role, the cluster and the ingress rule")
	flags.BoolVar(&options.delete, "delete", false, "Delete the cluster")

	cmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})

	return cmd
}

func runCreate(ctx context.Context, out io.Writer, provisioner Provisioner) error {
	result, err := provisioner.Create(ctx)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintln(out, "Redshift connection:")
	fmt.Fprintln(out, result.ConnectionString)

	return nil
}

func runDelete(ctx context.Context, out io.Writer, provisioner Provisioner) error {
	err := provisioner.Delete(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ClusterStatus: >>> %s\n", color.GreenString(dwh.ClusterStatusDeleted))

	return nil
}
