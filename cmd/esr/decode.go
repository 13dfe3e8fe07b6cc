package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
)

type actionView struct {
	Account       string   `json:"account"`
	Name          string   `json:"name"`
	Authorization []string `json:"authorization"`
	Data          string   `json:"data"`
}

type requestView struct {
	ChainID    string            `json:"chain_id"`
	Kind       string            `json:"kind"`
	Actions    []actionView      `json:"actions,omitempty"`
	Broadcast  bool              `json:"broadcast"`
	Background bool              `json:"background"`
	Callback   string            `json:"callback,omitempty"`
	Info       map[string]string `json:"info,omitempty"`
}

func viewRequest(req *codec.Request) requestView {
	view := requestView{
		ChainID:    req.ChainID.String(),
		Kind:       req.Kind.String(),
		Broadcast:  req.Broadcast,
		Background: req.Background,
		Callback:   req.Callback,
		Info:       req.Info,
	}

	for _, action := range req.Actions {
		av := actionView{
			Account: action.Account.String(),
			Name:    action.Name.String(),
			Data:    hex.EncodeToString(action.Data),
		}
		for _, auth := range action.Authorization {
			av.Authorization = append(av.Authorization, auth.Actor.String()+"@"+auth.Permission.String())
		}
		view.Actions = append(view.Actions, av)
	}

	return view
}

func bindDecode(cmd *cobra.Command) {
	decodeCmd := &cobra.Command{
		Use:   "decode <uri>",
		Short: "decode a signing request",
		Long: "Decodes a signing request uri and prints its contents. No " +
			"network request is made so contract payloads are shown raw.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := codec.Decode(args[0], codec.DefaultSchemes)
			if err != nil {
				return err
			}

			printJSON(viewRequest(req))
			return nil
		},
	}

	cmd.AddCommand(decodeCmd)
}

type encodeIdentityProps struct {
	ChainID    string
	Callback   string
	Background bool
	LinkKey    string
	ReturnPath string
	Compress   bool
}

func runEncodeIdentity(props encodeIdentityProps) (string, error) {
	chainID, err := codec.ParseChainID(props.ChainID)
	if err != nil {
		return "", err
	}

	req := &codec.Request{
		ChainID:    chainID,
		Kind:       codec.KindIdentity,
		Callback:   props.Callback,
		Background: props.Background,
		Info:       make(map[string]string),
	}

	if len(props.LinkKey) > 0 {
		key, err := ecc.ParsePublicKey(props.LinkKey)
		if err != nil {
			return "", err
		}
		req.Info[codec.InfoLinkKey] = key.String()
	}
	if len(props.ReturnPath) > 0 {
		req.Info[codec.InfoReturnPath] = props.ReturnPath
	}

	return codec.Encode(req, codec.DefaultSchemes[0], props.Compress)
}

func bindEncodeIdentity(cmd *cobra.Command) {
	var props encodeIdentityProps

	encodeCmd := &cobra.Command{
		Use:   "encode-identity",
		Short: "encode an identity request",
		Long: "Encodes the identity request a requester sends to link a " +
			"wallet. Useful to test wallets end to end.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := runEncodeIdentity(props)
			if err != nil {
				return err
			}

			cmd.Println(uri)
			return nil
		},
	}

	encodeCmd.Flags().StringVar(&props.ChainID, "chain-id", "", "hex id of the chain the identity is requested on")
	encodeCmd.Flags().StringVar(&props.Callback, "callback", "", "url the identity proof is delivered to")
	encodeCmd.Flags().BoolVar(&props.Background, "background", true, "deliver the proof with a POST instead of returning the url")
	encodeCmd.Flags().StringVar(&props.LinkKey, "link-key", "", "public key of the requester. Set it to open a session")
	encodeCmd.Flags().StringVar(&props.ReturnPath, "return-path", "", "url the wallet returns to once done")
	encodeCmd.Flags().BoolVar(&props.Compress, "compress", true, "deflate the request payload")

	cmd.AddCommand(encodeCmd)
}
